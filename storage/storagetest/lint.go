// Package storagetest contains a conformance suite for chaindict.Store
// implementations.
package storagetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/bsm/chaindict"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

// Lint registers the conformance specs for the store returned by subject.
// It must be called inside a container node and subject must return an empty
// store for each spec.
func Lint(subject func() chaindict.Store) {
	var store chaindict.Store
	var ctx = context.Background()

	BeforeEach(func() {
		store = subject()
	})

	It("should put and get", func() {
		Expect(store.PutIfAbsent(ctx, "ns/a", []byte("data"))).To(Succeed())
		Expect(store.Get(ctx, "ns/a")).To(Equal([]byte("data")))
	})

	It("should store empty objects", func() {
		Expect(store.PutIfAbsent(ctx, "ns/empty", []byte{})).To(Succeed())
		Expect(store.Get(ctx, "ns/empty")).To(BeEmpty())
	})

	It("should return not found", func() {
		_, err := store.Get(ctx, "ns/missing")
		Expect(err).To(MatchError(chaindict.ErrNotFound))
	})

	It("should never overwrite", func() {
		Expect(store.PutIfAbsent(ctx, "ns/a", []byte("first"))).To(Succeed())
		Expect(store.PutIfAbsent(ctx, "ns/a", []byte("second"))).To(MatchError(chaindict.ErrAlreadyExists))
		Expect(store.Get(ctx, "ns/a")).To(Equal([]byte("first")))
	})

	It("should list by prefix, in order", func() {
		for _, key := range []string{"ns/2", "ns/0", "other/1", "ns/1", "ns2/0"} {
			Expect(store.PutIfAbsent(ctx, key, []byte(key))).To(Succeed())
		}

		Expect(store.List(ctx, "ns/")).To(Equal([]string{"ns/0", "ns/1", "ns/2"}))
		Expect(store.List(ctx, "other/")).To(Equal([]string{"other/1"}))
		Expect(store.List(ctx, "none/")).To(BeEmpty())
	})

	It("should let exactly one concurrent put win", func() {
		var wg sync.WaitGroup
		errs := make([]error, 8)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer GinkgoRecover()
				defer wg.Done()
				errs[i] = store.PutIfAbsent(ctx, "ns/race", []byte(fmt.Sprint(i)))
			}(i)
		}
		wg.Wait()

		var won []int
		for i, err := range errs {
			if err == nil {
				won = append(won, i)
			} else {
				Expect(err).To(MatchError(chaindict.ErrAlreadyExists))
			}
		}
		Expect(won).To(HaveLen(1))
		Expect(store.Get(ctx, "ns/race")).To(Equal([]byte(fmt.Sprint(won[0]))))
	})
}
