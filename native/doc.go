// Package native connects script types to their host implementations.
//
// A Binding supplies the native functions of one script type. Bindings are
// registered in a Table under the fully-qualified script type name before
// the first assembly loads:
//
//	bindings := native.NewTable()
//	bindings.MustRegister("system.JSON", native.JSON())
//	bindings.MustRegister("game.Clock", native.Static(&Clock{}))
//	bindings.MustRegister("game.Sprite", native.Managed(newSprite))
//
// Table.Bind resolves and checks a binding against the reflected type. A
// type declared managed must be bound to a managed binding and vice versa;
// the binding's Validate hook then checks member coverage.
//
// Static bindings expose exported methods as static natives. Managed
// bindings create one host value per script instance; instance natives find
// it through HostOf.
package native
