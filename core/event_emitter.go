package orchestration

import (
	"github.com/koscakluka/ema-tota/core/events"
)

// newCallbackObserver maps session events onto the plain callbacks given to
// [Orchestrator.Orchestrate].
func newCallbackObserver(opts OrchestrateOptions) Observer {
	return ObserverFunc(func(event events.Event) error {
		switch typedEvent := event.(type) {
		case events.Utterance:
			if typedEvent.IsFinal && opts.onTranscription != nil {
				opts.onTranscription(typedEvent.Text)
			} else if !typedEvent.IsFinal && opts.onInterimTranscription != nil {
				opts.onInterimTranscription(typedEvent.Text)
			}
		case events.TurnStateChanged:
			if opts.onStateChanged != nil {
				opts.onStateChanged(typedEvent.From, typedEvent.To)
			}
		case events.ConversationItemAdded:
			if opts.onConversationItem != nil {
				opts.onConversationItem(typedEvent.Item)
			}
		case events.AssistantResponseSegment:
			if opts.onResponse != nil {
				opts.onResponse(typedEvent.Segment)
			}
		case events.AssistantResponseFinal:
			if opts.onResponseEnd != nil {
				opts.onResponseEnd()
			}
		case events.AssistantSpeechFrame:
			if opts.onAudio != nil {
				opts.onAudio(typedEvent.Audio)
			}
		case events.AssistantSpeechFinal:
			if opts.onAudioEnded != nil {
				opts.onAudioEnded()
			}
		case events.AssistantSpeechCleared:
			if opts.onCancellation != nil {
				opts.onCancellation()
			}
		}
		return nil
	})
}
