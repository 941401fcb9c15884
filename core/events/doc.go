// Package events defines the typed event contract of a dialogue session.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - session.*
//   - utterance.*
//   - turn_state.*
//   - conversation.*
//   - assistant_response.*
//   - assistant_speech.*
//   - stage.*
//
// Semantics used across the package:
//
//   - Frame: binary audio frame/chunk payload.
//   - Segment: append-only text piece emitted in stream order.
//   - Partial: revisable transcript that may still change.
//   - Final: terminal immutable text/state for the current stream/turn phase.
//
// session events
//
//   - SessionStarted (session.started): persona resolved, session running.
//   - SessionEnded (session.ended): session stopped; no events follow.
//
// utterance events
//
//   - Utterance (utterance.partial, utterance.final): normalized transcript
//     update keyed by utterance id. Timestamps never go backwards per speaker.
//   - TranscriptFault (utterance.transcript_fault): the transcript stream
//     failed; the open user turn is closed as indeterminate.
//
// turn_state events
//
//   - TurnStarted (turn_state.started): a user or agent turn opened.
//   - TurnStateChanged (turn_state.changed): the session moved between idle,
//     listening, thinking, speaking and interrupted.
//   - EndpointReached (turn_state.endpoint_reached): the user finished
//     speaking and the floor passes to the agent.
//   - TurnEnded (turn_state.ended): a turn closed; carries its outcome.
//
// conversation events
//
//   - ConversationItemAdded (conversation.item_added): an item was committed
//     to the conversation log.
//
// assistant_response events
//
//   - AssistantResponseSegment (assistant_response.segment): streamed response
//     text segment.
//   - AssistantResponseFinal (assistant_response.final): response text stream
//     is complete.
//
// assistant_speech events
//
//   - AssistantSpeechFrame (assistant_speech.frame): synthesized speech audio
//     frame.
//   - AssistantSpeechFinal (assistant_speech.final): synthesis ended.
//   - AssistantSpeechCleared (assistant_speech.cleared): queued outbound audio
//     was dropped after an interruption.
//
// stage events
//
//   - StageFault (stage.fault): a recognizer, generator, synthesizer or audio
//     output stage failed.
package events
