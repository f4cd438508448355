package chaindict_test

import (
	"github.com/bsm/chaindict"
	"github.com/bsm/chaindict/storage/memstore"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Chain", func() {
	var store *memstore.Store
	var subject *chaindict.Resolver
	var ns string

	put := func(key string) {
		Expect(store.PutIfAbsent(ctx, key, []byte("x"))).To(Succeed())
	}

	BeforeEach(func() {
		var err error
		ns = testNamespace()
		store = memstore.New()
		subject, err = chaindict.NewResolver(store, ns, nil)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(subject.Close()).To(Succeed())
	})

	It("should load empty chains", func() {
		c, err := subject.Chain(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Namespace()).To(Equal(ns))
		Expect(c.Len()).To(Equal(0))
		Expect(c.Links()).To(BeEmpty())

		_, ok := c.Latest()
		Expect(ok).To(BeFalse())
		_, ok = c.Link(0)
		Expect(ok).To(BeFalse())
	})

	It("should derive links from keys", func() {
		put(chaindict.LinkKey(ns, 0, chaindict.KindDelta))
		put(chaindict.LinkKey(ns, 1, chaindict.KindDelta))
		put(chaindict.LinkKey(ns, 1, chaindict.KindSnapshot))
		put(chaindict.LinkKey(ns, 2, chaindict.KindSnapshot))
		put(ns + "/README")
		put(ns + "/0000000003.delta.tmp")
		put(ns + "x/0000000003.delta")

		c, err := subject.Chain(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Len()).To(Equal(3))
		latest, ok := c.Latest()
		Expect(ok).To(BeTrue())
		Expect(latest).To(Equal(uint32(2)))
		Expect(c.Links()).To(Equal([]chaindict.Link{
			{Index: 0, HasDelta: true},
			{Index: 1, HasDelta: true, HasSnapshot: true},
			{Index: 2, HasSnapshot: true},
		}))
		Expect(c.SnapshotIndices()).To(Equal([]uint32{1, 2}))

		l, ok := c.Link(1)
		Expect(ok).To(BeTrue())
		prev, ok := l.Predecessor()
		Expect(ok).To(BeTrue())
		Expect(prev).To(Equal(uint32(0)))

		l, _ = c.Link(0)
		_, ok = l.Predecessor()
		Expect(ok).To(BeFalse())
	})

	It("should detect gaps", func() {
		put(chaindict.LinkKey(ns, 0, chaindict.KindDelta))
		put(chaindict.LinkKey(ns, 2, chaindict.KindDelta))
		put(chaindict.LinkKey(ns, 2, chaindict.KindSnapshot))

		_, err := subject.Chain(ctx)
		Expect(err).To(matchErr(chaindict.ErrBrokenChain))
		Expect(err.Error()).To(ContainSubstring("no files for links 1"))
	})

	It("should detect stray high indices", func() {
		put(chaindict.LinkKey(ns, 0, chaindict.KindDelta))
		put(chaindict.LinkKey(ns, 4000000000, chaindict.KindDelta))

		_, err := subject.Chain(ctx)
		Expect(err).To(matchErr(chaindict.ErrBrokenChain))
		Expect(chaindict.IsFatal(err)).To(BeTrue())
	})

	It("should not mix namespaces", func() {
		other, err := chaindict.NewResolver(store, ns+"/sub", nil)
		Expect(err).NotTo(HaveOccurred())
		defer other.Close()

		put(chaindict.LinkKey(ns, 0, chaindict.KindDelta))
		put(chaindict.LinkKey(ns+"/sub", 0, chaindict.KindDelta))
		put(chaindict.LinkKey(ns+"/sub", 1, chaindict.KindDelta))

		c, err := subject.Chain(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Len()).To(Equal(1))

		c, err = other.Chain(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Len()).To(Equal(2))
	})

	It("should wrap backend failures", func() {
		r, err := chaindict.NewResolver(failingStore{}, ns, nil)
		Expect(err).NotTo(HaveOccurred())
		defer r.Close()

		_, err = r.Chain(ctx)
		Expect(err).To(matchErr(chaindict.ErrBackendUnavailable))
		Expect(err.Error()).To(ContainSubstring("connection refused"))
		Expect(chaindict.IsRetryable(err)).To(BeTrue())
	})
})
