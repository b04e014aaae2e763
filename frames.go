package careerflow

// buildFrames wires the static frame tree:
//
//	supervisor
//	├── job_search
//	├── jd
//	│   ├── jd_score
//	│   └── jd_synthesize
//	└── cv
//
// Specialist frames end every path in a Resume to the supervisor (or a
// Terminal, which only the supervisor produces), so a frame never falls
// off its graph.
func buildFrames(e *Engine) map[FrameID]*Frame {
	supervisor := &Frame{ID: FrameSupervisor, Entry: "classify"}
	supervisor.add(&supervisorNode{e: e})
	supervisor.mount(NodeID(routeJobSearch), FrameJobSearch)
	supervisor.mount(NodeID(routeJD), FrameJD)
	supervisor.mount(NodeID(routeCV), FrameCV)

	jobSearch := &Frame{ID: FrameJobSearch, Parent: FrameSupervisor, Entry: "search_expert"}
	jobSearch.add(&jobSearchNode{e: e})

	jd := &Frame{ID: FrameJD, Parent: FrameSupervisor, Entry: "jd_expert"}
	jd.add(&jdExpertNode{e: e})
	jd.mount("score_batch", FrameJDScore)
	jd.mount("synthesize_batch", FrameJDSynth)

	jdScore := &Frame{ID: FrameJDScore, Parent: FrameJD, Entry: "resolve"}
	jdScore.add(&resolveJDsNode{e: e, frame: FrameJDScore, next: "score_each"})
	jdScore.add(&scoreBatchNode{e: e})
	jdScore.add(&summarizeScoresNode{e: e})

	jdSynth := &Frame{ID: FrameJDSynth, Parent: FrameJD, Entry: "resolve"}
	jdSynth.add(&resolveJDsNode{e: e, frame: FrameJDSynth, next: "compare_each"})
	jdSynth.add(&compareBatchNode{e: e})

	cv := &Frame{ID: FrameCV, Parent: FrameSupervisor, Entry: "classify"}
	cv.add(&classifyCVNode{e: e})
	cv.add(&formatReviewNode{e: e})
	cv.add(&extractRequirementsNode{e: e})
	cv.add(&analyzeCVNode{e: e})
	cv.add(&suggestNode{e: e})
	cv.add(&writeCVNode{e: e})

	return map[FrameID]*Frame{
		FrameSupervisor: supervisor,
		FrameJobSearch:  jobSearch,
		FrameJD:         jd,
		FrameJDScore:    jdScore,
		FrameJDSynth:    jdSynth,
		FrameCV:         cv,
	}
}
