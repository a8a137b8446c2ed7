package overlay

import (
	"overlayd/internal/completion"
	"overlayd/internal/manager"
	"overlayd/pkg/types"
)

// ToModelStatus renders a manager status for clients.
func ToModelStatus(st manager.Status) types.ModelStatus {
	return types.ModelStatus{
		State:     string(st.State),
		Progress:  st.Progress,
		Tier:      string(st.Tier),
		ModelID:   st.ModelID,
		Installed: st.Installed,
		Runtime:   st.Runtime,
		Error:     st.Err,
	}
}

// ToCompletionResult renders a queue result for clients.
func ToCompletionResult(res completion.Result) types.CompletionResult {
	out := types.CompletionResult{
		RequestID: res.RequestID,
		Label:     res.Label,
		Text:      res.Text,
		Kind:      string(res.Kind),
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	return out
}

// ToStatusEvent renders a lifecycle change for clients.
func ToStatusEvent(c StatusChange) types.StatusEvent {
	return types.StatusEvent{Event: c.Event, Model: ToModelStatus(c.Status)}
}
