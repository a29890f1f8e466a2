// Package companion implements the conversation state machine that ties the
// model client and the speech adapter into one picture-talk session.
//
// The controller owns all session state: the current image, the dialogue
// history, the background color, and a status that walks the loop
//
//	Idle -> Analyzing -> Speaking -> Listening -> Thinking -> Speaking -> ...
//
// with any state able to fall into Error when a model call fails. Every
// transition happens under one mutex, driven by user actions or by the
// completion callbacks of the speech adapter. The controller never has more
// than one model request, utterance, or recognition run in flight.
//
// Example usage:
//
//	adapter := speech.NewAdapter(synth, rec)
//	ctrl := companion.NewController(adapter)
//	ctrl.SetClient(liveClient)
//	ctrl.OnChange(func(s companion.Snapshot) { broadcast(s) })
//	if err := ctrl.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
package companion
