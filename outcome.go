package careerflow

import "context"

// FrameID identifies one frame in the static nesting of workflows.
type FrameID string

const (
	FrameSupervisor FrameID = "supervisor"
	FrameJobSearch  FrameID = "job_search"
	FrameJD         FrameID = "jd"
	FrameJDScore    FrameID = "jd_score"
	FrameJDSynth    FrameID = "jd_synthesize"
	FrameCV         FrameID = "cv"
)

// NodeID identifies a node within its frame.
type NodeID string

// StepOutcome is what a node execution produced. It is a closed sum:
// Continue, Resume, or Terminal. The router interprets outcomes centrally;
// nodes never jump anywhere themselves and never panic for control flow.
type StepOutcome interface {
	isOutcome()
}

// Continue proceeds to another node in the current frame. The target may
// be a plain node or the mount point of a child frame.
type Continue struct {
	Next NodeID
}

// Resume is a non-local exit: unwind nested frames until Target and
// deliver the payload there. Target must be an ancestor of the frame that
// produced the outcome; in this engine it is always the supervisor frame.
type Resume struct {
	Target  FrameID
	Payload Transfer
}

// Terminal ends the turn with a user-visible reply.
type Terminal struct {
	Reply string
}

func (Continue) isOutcome() {}
func (Resume) isOutcome()   {}
func (Terminal) isOutcome() {}

// Node is one executable step. Run mutates the thread state it is given
// and reports where control goes next.
type Node interface {
	Name() NodeID
	Run(ctx context.Context, st *ThreadState) (StepOutcome, error)
}

// NodeFunc adapts a function into a Node.
type NodeFunc struct {
	ID NodeID
	Fn func(ctx context.Context, st *ThreadState) (StepOutcome, error)
}

func (n *NodeFunc) Name() NodeID { return n.ID }

func (n *NodeFunc) Run(ctx context.Context, st *ThreadState) (StepOutcome, error) {
	return n.Fn(ctx, st)
}

// Frame is one workflow graph: an entry node, its nodes, and mount points
// where a NodeID resolves to a nested child frame instead of a node.
// Frames form a static tree rooted at the supervisor.
type Frame struct {
	ID     FrameID
	Parent FrameID // zero for the root
	Entry  NodeID
	Nodes  map[NodeID]Node
	Mounts map[NodeID]FrameID
}

// add registers a node under its own name.
func (f *Frame) add(n Node) {
	if f.Nodes == nil {
		f.Nodes = map[NodeID]Node{}
	}
	f.Nodes[n.Name()] = n
}

// mount registers a child frame at a node position.
func (f *Frame) mount(at NodeID, child FrameID) {
	if f.Mounts == nil {
		f.Mounts = map[NodeID]FrameID{}
	}
	f.Mounts[at] = child
}
