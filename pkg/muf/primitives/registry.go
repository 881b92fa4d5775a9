// Package primitives implements the built-in MUF instruction set.
package primitives

import (
	"github.com/crystal-mush/gomuck/pkg/muf"
)

// RegisterAll adds every built-in primitive to b.
func RegisterAll(b *muf.RegistryBuilder) {
	registerStack(b)
	registerMath(b)
	registerLogic(b)
	registerConvert(b)
	registerStrings(b)
	registerArrays(b)
	registerVars(b)
	registerProps(b)
	registerObjects(b)
	registerNotify(b)
	registerConn(b)
	registerTime(b)
	registerRandom(b)
	registerMode(b)
	registerCall(b)
}

// NewRegistry returns a frozen registry holding every built-in primitive.
func NewRegistry() *muf.Registry {
	b := muf.NewRegistryBuilder()
	RegisterAll(b)
	return b.Build()
}
