// Package benchmarks provides performance benchmarks for the dispatch cycle.
package benchmarks

import (
	"fmt"
	"testing"

	"github.com/comalice/fractalx"
)

func BenchmarkDispatchLeaf(b *testing.B) {
	def := GenWideDefinition(1)
	m := RunModule(def)
	defer m.Dispose()
	dd := fractalx.DispatchData{ID: fractalx.DeriveID(def.Name, "c0"), Input: "inc"}
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if err := m.Dispatch(dd); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDispatchDeep(b *testing.B) {
	for _, depth := range []int{1, 5, 20} {
		b.Run(fmt.Sprintf("depth=%d", depth), func(b *testing.B) {
			m := RunModule(GenDeepDefinition(depth))
			defer m.Dispose()
			dd := fractalx.DispatchData{ID: DeepLeafID(depth), Input: "inc"}
			b.ResetTimer()
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if err := m.Dispatch(dd); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkDispatchWide(b *testing.B) {
	for _, n := range []int{10, 100, 1000} {
		b.Run(fmt.Sprintf("components=%d", n), func(b *testing.B) {
			def := GenWideDefinition(n)
			m := RunModule(def)
			defer m.Dispose()
			b.ResetTimer()
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				id := fractalx.DeriveID(def.Name, fmt.Sprintf("c%d", i%n))
				if err := m.Dispatch(fractalx.DispatchData{ID: id, Input: "add", Payload: 2}); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkExecuteList(b *testing.B) {
	def := GenWideDefinition(1)
	m := RunModule(def)
	defer m.Dispose()
	id := fractalx.DeriveID(def.Name, "c0")
	inc := fractalx.UpdateOf(func(n int) int { return n + 1 })
	list := fractalx.List{inc, inc, inc, inc}
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if err := fractalx.Execute(m.Context(), id, list); err != nil {
			b.Fatal(err)
		}
	}
}
