package controller

// State 是客户端可见的交互状态。
type State string

const (
	StateIdle       State = "idle"
	StateListening  State = "listening"
	StateProcessing State = "processing"
	StateSpeaking   State = "speaking"
	StateError      State = "error"
)

// Event 触发状态迁移，全部来自外部（用户操作或异步结果）。
type Event string

const (
	EventPress        Event = "press"         // 按住开始录音
	EventRelease      Event = "release"       // 松开提交录音
	EventSubmit       Event = "submit"        // 提交文字
	EventReplied      Event = "replied"       // 收到带音频的回复
	EventRepliedMute  Event = "replied_mute"  // 收到回复但没有音频
	EventReplay       Event = "replay"        // 重播上一段音频
	EventPlaybackDone Event = "playback_done" // 播放结束
	EventCancel       Event = "cancel"
	EventFail         Event = "fail"
	EventReset        Event = "reset"
)

var transitions = map[State]map[Event]State{
	StateIdle: {
		EventPress:  StateListening,
		EventSubmit: StateProcessing,
		EventReplay: StateSpeaking,
		EventFail:   StateError,
	},
	StateListening: {
		EventRelease: StateProcessing,
		EventCancel:  StateIdle,
		EventFail:    StateError,
	},
	StateProcessing: {
		EventReplied:     StateSpeaking,
		EventRepliedMute: StateIdle,
		EventCancel:      StateIdle,
		EventFail:        StateError,
	},
	StateSpeaking: {
		EventPlaybackDone: StateIdle,
		EventFail:         StateError,
	},
	StateError: {
		EventReset: StateIdle,
		EventPress: StateListening,
	},
}

// Transition 返回 event 作用于 state 后的新状态；不允许的迁移返回原状态和 false。
func Transition(state State, event Event) (State, bool) {
	next, ok := transitions[state][event]
	if !ok {
		return state, false
	}
	return next, true
}
