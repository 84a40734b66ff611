// Package search implements the debounced live search over the character catalog.
//
// The behavior lives in Transition, a pure function from (State, Event) to the
// next State plus the Effects to perform. Controller drives it with a clock
// and a Searcher:
//
//	ctrl := search.NewController[rickandmorty.Character](svc)
//	defer ctrl.Close()
//	_ = ctrl.SetField(search.FieldName, "rick")
//	// 500ms later one request is issued; the result arrives via Subscribe.
//
// Every filter change bumps State.Generation. A quiet-period timer or a
// response that carries an older generation is ignored, so a slow reply to an
// outdated filter can never overwrite newer results.
package search
