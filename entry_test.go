package chaindict_test

import (
	"bytes"

	"github.com/bsm/chaindict"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"
)

var _ = Describe("Entry", func() {
	It("should encode", func() {
		Expect(chaindict.EncodeEntry([]byte("apple"), 7)).To(Equal([]byte{5, 'a', 'p', 'p', 'l', 'e', 7, 0, 0, 0}))
		Expect(chaindict.EncodeEntry(nil, 0x01020304)).To(Equal([]byte{0, 4, 3, 2, 1}))
		Expect(chaindict.EncodeEntry(bytes.Repeat([]byte{'x'}, 128), 1)[:3]).To(Equal([]byte{0x80, 0x01, 'x'}))
	})

	It("should append", func() {
		buf := chaindict.AppendEntry([]byte("prefix"), []byte("a"), 1)
		buf = chaindict.AppendEntry(buf, []byte("bc"), 2)
		Expect(buf).To(Equal([]byte("prefix\x01a\x01\x00\x00\x00\x02bc\x02\x00\x00\x00")))
	})

	DescribeTable("should round-trip",
		func(size int, id uint32) {
			value := bytes.Repeat([]byte{'v'}, size)
			enc := chaindict.EncodeEntry(value, id)
			Expect(enc).To(HaveLen(chaindict.EncodedEntrySize(value)))

			ent, n, err := chaindict.DecodeEntry(append([]byte("junk"), enc...), 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(len(enc)))
			Expect(ent.Value).To(Equal(value))
			Expect(ent.ID).To(Equal(id))
		},
		Entry("empty", 0, uint32(0)),
		Entry("short", 1, uint32(1)),
		Entry("single length byte", 127, uint32(1000)),
		Entry("two length bytes", 128, uint32(1<<24)),
		Entry("large", 1<<16, uint32(1<<32-1)),
	)

	It("should decode consecutive entries", func() {
		buf := chaindict.AppendEntry(nil, []byte("a"), 0)
		buf = chaindict.AppendEntry(buf, []byte(""), 1)
		buf = chaindict.AppendEntry(buf, []byte("ccc"), 2)

		var got []string
		for off := 0; off < len(buf); {
			ent, n, err := chaindict.DecodeEntry(buf, off)
			Expect(err).NotTo(HaveOccurred())
			Expect(ent.ID).To(Equal(uint32(len(got))))
			got = append(got, string(ent.Value))
			off += n
		}
		Expect(got).To(Equal([]string{"a", "", "ccc"}))
	})

	It("should reject truncated entries", func() {
		for _, value := range [][]byte{nil, []byte("apple"), bytes.Repeat([]byte{'x'}, 200)} {
			enc := chaindict.EncodeEntry(value, 3)
			for n := 0; n < len(enc); n++ {
				_, _, err := chaindict.DecodeEntry(enc[:n], 0)
				Expect(err).To(matchErr(chaindict.ErrTruncatedEntry), "for %d of %d bytes", n, len(enc))
			}
		}

		_, _, err := chaindict.DecodeEntry([]byte{0, 1, 0, 0, 0}, 6)
		Expect(err).To(matchErr(chaindict.ErrTruncatedEntry))
	})

	It("should reject non-canonical lengths", func() {
		// 1, encoded in two bytes
		_, _, err := chaindict.DecodeEntry([]byte{0x81, 0x00, 'x', 0, 0, 0, 0}, 0)
		Expect(err).To(matchErr(chaindict.ErrMalformedEntry))
	})

	It("should reject overflowing lengths", func() {
		buf := append(bytes.Repeat([]byte{0xff}, 11), 0, 0, 0, 0)
		_, _, err := chaindict.DecodeEntry(buf, 0)
		Expect(err).To(matchErr(chaindict.ErrMalformedEntry))
	})

	It("should reject lengths beyond the buffer", func() {
		// claims 2^62 bytes
		buf := []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x40, 0, 0, 0, 0}
		_, _, err := chaindict.DecodeEntry(buf, 0)
		Expect(err).To(matchErr(chaindict.ErrTruncatedEntry))
	})
})
