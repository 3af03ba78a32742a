package tree

// EventType names a notification emitted by a tree.
type EventType string

const (
	EventChanged     EventType = "changed"
	EventSelect      EventType = "select_node"
	EventDeselect    EventType = "deselect_node"
	EventOpen        EventType = "open_node"
	EventClose       EventType = "close_node"
	EventLoad        EventType = "load_node"
	EventCreate      EventType = "create_node"
	EventRename      EventType = "rename_node"
	EventDelete      EventType = "delete_node"
	EventMove        EventType = "move_node"
	EventCopy        EventType = "copy_node"
	EventCut         EventType = "cut"
	EventCopyBuf     EventType = "copy"
	EventPaste       EventType = "paste"
	EventRedraw      EventType = "redraw"
	EventSetState    EventType = "set_state"
	EventRefresh     EventType = "refresh"
	EventError       EventType = "error"
	EventDisable     EventType = "disable_node"
	EventEnable      EventType = "enable_node"
	EventHide        EventType = "hide_node"
	EventShow        EventType = "show_node"
	EventSelectAll   EventType = "select_all"
	EventDeselectAll EventType = "deselect_all"
)

// Event describes one notification. Fields that do not apply to the type
// are left zero.
type Event struct {
	Type        EventType
	Node        string
	Parent      string
	OldParent   string
	Position    int
	OldPosition int
	IDs         []string // selection after the change, or affected ids
	Origin      string   // instance id of a foreign move or paste source
	Original    string   // source id of a copy
	Text        string
	OldText     string
	Action      string // for "changed": the operation that changed selection
	Status      bool   // for "load_node": whether the load succeeded
	Err         *Error // for "error"
}

func (t *Tree) emit(ev Event) {
	if t.opts.OnEvent != nil {
		t.opts.OnEvent(ev)
	}
}

// emitChanged reports a selection change caused by action.
func (t *Tree) emitChanged(action, node string) {
	t.emit(Event{Type: EventChanged, Node: node, Action: action, IDs: t.Selected()})
}
