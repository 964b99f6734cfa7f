// Package inkwell is the composition root of a headless, single-document note
// editor with autosave and cross-instance sync.
//
// A session holds one markdown document. Edits are saved after an idle delay
// to either a scratch slot (the default target) or a bound external file,
// other instances are told about every successful save, and external changes
// to the bound file are detected by polling. When a change arrives while
// local edits are unsaved, the session raises a conflict instead of
// overwriting either side; the user resolves it with Reload or Dismiss.
//
// Usage:
//
//	rt, err := inkwell.New(ctx,
//		inkwell.WithScratchBackend("sqlite"),
//		inkwell.WithLogger(logger),
//	)
//	if err != nil {
//		return err
//	}
//	defer rt.Close()
//
//	sess := rt.Session
//	if err := sess.Start(ctx); err != nil {
//		return err
//	}
//	defer sess.Stop(ctx)
//
//	sess.Edit("# Today\n- [ ] write docs")
package inkwell
