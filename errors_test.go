package chaindict_test

import (
	"context"
	"errors"
	"fmt"

	"github.com/bsm/chaindict"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"
)

var _ = Describe("Classify", func() {
	DescribeTable("should classify",
		func(err error, class chaindict.Class, retryable, fatal bool) {
			Expect(chaindict.Classify(err)).To(Equal(class))
			Expect(chaindict.IsRetryable(err)).To(Equal(retryable))
			Expect(chaindict.IsFatal(err)).To(Equal(fatal))
		},
		Entry("backend", chaindict.ErrBackendUnavailable, chaindict.ClassTransient, true, false),
		Entry("conflict", fmt.Errorf("%w: link 3", chaindict.ErrConflict), chaindict.ClassTransient, true, false),
		Entry("deadline", context.DeadlineExceeded, chaindict.ClassTransient, true, false),
		Entry("corrupt", fmt.Errorf("ns/0000000000.delta: %w", chaindict.ErrCorruptFile), chaindict.ClassFile, false, true),
		Entry("header", chaindict.ErrMalformedHeader, chaindict.ClassFile, false, true),
		Entry("version", chaindict.ErrUnsupportedVersion, chaindict.ClassFile, false, true),
		Entry("truncated", chaindict.ErrTruncatedEntry, chaindict.ClassFile, false, true),
		Entry("malformed", chaindict.ErrMalformedEntry, chaindict.ClassFile, false, true),
		Entry("broken", chaindict.ErrBrokenChain, chaindict.ClassChain, false, true),
		Entry("missing", chaindict.ErrMissingDelta, chaindict.ClassChain, false, true),
		Entry("duplicate id", chaindict.ErrDuplicateID, chaindict.ClassChain, false, true),
		Entry("duplicate value", chaindict.ErrDuplicateValue, chaindict.ClassChain, false, true),
		Entry("vanished", chaindict.ErrNotFound, chaindict.ClassChain, false, true),
		Entry("no delta", chaindict.ErrDeltaNotAvailable, chaindict.ClassNoData, false, false),
		Entry("no link", chaindict.ErrLinkNotFound, chaindict.ClassOther, false, false),
		Entry("unknown", errors.New("boom"), chaindict.ClassOther, false, false),
	)

	It("should classify nil", func() {
		Expect(chaindict.Classify(nil)).To(Equal(chaindict.ClassNone))
		Expect(chaindict.IsRetryable(nil)).To(BeFalse())
		Expect(chaindict.IsFatal(nil)).To(BeFalse())
	})

	It("should print classes", func() {
		Expect(chaindict.ClassNone.String()).To(Equal("none"))
		Expect(chaindict.ClassTransient.String()).To(Equal("transient"))
		Expect(chaindict.ClassFile.String()).To(Equal("file"))
		Expect(chaindict.ClassChain.String()).To(Equal("chain"))
		Expect(chaindict.ClassNoData.String()).To(Equal("no-data"))
		Expect(chaindict.ClassOther.String()).To(Equal("other"))
	})
})
