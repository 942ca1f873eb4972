package converter

import "github.com/immxrtalbeast/huddle/internal/domain"

// MessagesToApi renders history in the same shape receive_message uses.
func MessagesToApi(msgs []*domain.Message) []domain.MessageView {
	out := make([]domain.MessageView, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, domain.NewMessageView(m))
	}
	return out
}
