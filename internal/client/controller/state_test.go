package controller

import "testing"

func TestTransition(t *testing.T) {
	cases := []struct {
		from  State
		event Event
		want  State
		ok    bool
	}{
		{StateIdle, EventPress, StateListening, true},
		{StateIdle, EventSubmit, StateProcessing, true},
		{StateIdle, EventReplay, StateSpeaking, true},
		{StateIdle, EventRelease, StateIdle, false},
		{StateListening, EventRelease, StateProcessing, true},
		{StateListening, EventCancel, StateIdle, true},
		{StateListening, EventSubmit, StateListening, false},
		{StateProcessing, EventReplied, StateSpeaking, true},
		{StateProcessing, EventRepliedMute, StateIdle, true},
		{StateProcessing, EventCancel, StateIdle, true},
		{StateProcessing, EventPress, StateProcessing, false},
		{StateProcessing, EventReplay, StateProcessing, false},
		{StateSpeaking, EventPlaybackDone, StateIdle, true},
		{StateSpeaking, EventReplay, StateSpeaking, false},
		{StateSpeaking, EventCancel, StateSpeaking, false},
		{StateError, EventReset, StateIdle, true},
		{StateError, EventPress, StateListening, true},
		{StateError, EventSubmit, StateError, false},
		{State("bogus"), EventReset, State("bogus"), false},
	}

	for _, tc := range cases {
		got, ok := Transition(tc.from, tc.event)
		if got != tc.want || ok != tc.ok {
			t.Errorf("Transition(%s, %s) = (%s, %t), want (%s, %t)", tc.from, tc.event, got, ok, tc.want, tc.ok)
		}
	}
}

func TestEveryBusyStateCanFail(t *testing.T) {
	for _, s := range []State{StateIdle, StateListening, StateProcessing, StateSpeaking} {
		if got, ok := Transition(s, EventFail); !ok || got != StateError {
			t.Errorf("%s should fail into error, got (%s, %t)", s, got, ok)
		}
	}
}
