package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/zhouzirui/cantonese-tutor/backend/internal/client/controller"
)

// renderer 只做输出，不修改控制器状态。
type renderer struct {
	mu       sync.Mutex
	w        io.Writer
	printed  int
	state    controller.State
	notice   controller.Notice
	feedback string
	session  string
}

func newRenderer(w io.Writer) *renderer {
	return &renderer{w: w}
}

func (r *renderer) render(s controller.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.SessionID != r.session || len(s.Messages) < r.printed {
		r.session = s.SessionID
		r.printed = 0
		r.feedback = ""
	}

	for i := r.printed; i < len(s.Messages); i++ {
		m := s.Messages[i]
		who := "我"
		if m.Role == controller.RoleTutor {
			who = "導師"
		}
		fmt.Fprintf(r.w, "[%d] %s %s：%s\n", i+1, m.Timestamp.Format("15:04"), who, m.Text)
		for _, c := range m.Corrections {
			fmt.Fprintf(r.w, "      「%s」→「%s」\n", c.Written, c.Colloquial)
		}
	}
	r.printed = len(s.Messages)

	if s.Feedback != "" && s.Feedback != r.feedback {
		fmt.Fprintf(r.w, "  點評：%s\n", s.Feedback)
	}
	r.feedback = s.Feedback

	if s.Notice != r.notice && s.Notice.Text != "" {
		marker := "i"
		if s.Notice.Kind == controller.NoticeError {
			marker = "!"
		}
		fmt.Fprintf(r.w, "  %s %s\n", marker, s.Notice.Text)
	}
	r.notice = s.Notice

	if s.State != r.state {
		fmt.Fprintf(r.w, "  <%s>\n", strings.ToUpper(string(s.State)))
		r.state = s.State
	}
}
