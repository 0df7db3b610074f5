package hooking

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

var _ = Describe("HookableBase", func() {
	var (
		mockCtrl *gomock.Controller
		hookable *HookableBase
		pos      *HookPos
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		hookable = &HookableBase{}
		pos = &HookPos{Name: "Test"}
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should invoke hooks in registration order", func() {
		hook1 := NewMockHook(mockCtrl)
		hook2 := NewMockHook(mockCtrl)
		ctx := HookCtx{Pos: pos, Item: "a"}

		hookable.AcceptHook(hook1)
		hookable.AcceptHook(hook2)

		gomock.InOrder(
			hook1.EXPECT().Func(ctx),
			hook2.EXPECT().Func(ctx),
		)

		hookable.InvokeHook(ctx)
		Expect(hookable.NumHooks()).To(Equal(2))
	})

	It("should panic on duplicated hooks", func() {
		hook := NewMockHook(mockCtrl)
		hookable.AcceptHook(hook)

		Expect(func() { hookable.AcceptHook(hook) }).To(Panic())
	})

	It("should remove hooks", func() {
		hook := NewMockHook(mockCtrl)
		hookable.AcceptHook(hook)
		hookable.RemoveHook(hook)

		hookable.InvokeHook(HookCtx{Pos: pos})
		Expect(hookable.Hooks()).To(BeEmpty())
	})

	It("should collect only watched positions", func() {
		other := &HookPos{Name: "Other"}
		collector := &HookCollector{Positions: []*HookPos{pos}}
		hookable.AcceptHook(collector)

		hookable.InvokeHook(HookCtx{Pos: other})
		hookable.InvokeHook(HookCtx{Pos: pos, Item: 1})

		Expect(collector.Ctxs).To(HaveLen(1))
		Expect(collector.Ctxs[0].Item).To(Equal(1))
	})
})
