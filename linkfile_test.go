package chaindict_test

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math/rand"

	"github.com/bsm/chaindict"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

// reseal recomputes the checksum of a modified file.
func reseal(data []byte) []byte {
	end := len(data) - 4
	binary.LittleEndian.PutUint32(data[end:], crc32.Checksum(data[:end], crc32.MakeTable(crc32.Castagnoli)))
	return data
}

func mustEncode(kind chaindict.Kind, index, baseID uint32, entries ...chaindict.Entry) []byte {
	data, err := chaindict.EncodeLinkFile(kind, index, baseID, entries)
	Expect(err).NotTo(HaveOccurred())
	return data
}

var _ = Describe("LinkWriter", func() {
	var subject *chaindict.LinkWriter
	var testdata = []byte("testdata")

	BeforeEach(func() {
		subject = chaindict.NewLinkWriter(chaindict.KindDelta, 3, 20)
	})

	It("should write empty", func() {
		data, err := subject.Finish()
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(HaveLen(28))
	})

	It("should prevent out-of-sequence appends", func() {
		Expect(subject.Append(testdata, 20)).To(Succeed())
		Expect(subject.Append(testdata, 20)).To(MatchError(`chaindict: attempted an out-of-sequence append, id 20 must be 21`))
		Expect(subject.Append(testdata, 22)).To(MatchError(`chaindict: attempted an out-of-sequence append, id 22 must be 21`))
		Expect(subject.Append(testdata, 21)).To(Succeed())
		Expect(subject.Len()).To(Equal(2))
	})

	It("should number snapshot entries from zero", func() {
		subject = chaindict.NewLinkWriter(chaindict.KindSnapshot, 3, 1)
		Expect(subject.Append(testdata, 1)).To(MatchError(`chaindict: attempted an out-of-sequence append, id 1 must be 0`))
		Expect(subject.Append(testdata, 0)).To(Succeed())
		Expect(subject.Append([]byte("other"), 1)).To(Succeed())
		_, err := subject.Finish()
		Expect(err).NotTo(HaveOccurred())
	})

	It("should reject snapshots with a base beyond their entries", func() {
		subject = chaindict.NewLinkWriter(chaindict.KindSnapshot, 3, 2)
		Expect(subject.Append(testdata, 0)).To(Succeed())
		_, err := subject.Finish()
		Expect(err).To(MatchError(`chaindict: snapshot base id 2 exceeds entry count 1`))
	})

	It("should not be reusable", func() {
		_, err := subject.Finish()
		Expect(err).NotTo(HaveOccurred())
		Expect(subject.Append(testdata, 20)).To(MatchError(`chaindict: writer is finished`))
		_, err = subject.Finish()
		Expect(err).To(MatchError(`chaindict: writer is finished`))
	})

	It("should write", func() {
		rnd := rand.New(rand.NewSource(1))
		size := 28
		for id := uint32(20); id < 10020; id++ {
			val := make([]byte, rnd.Intn(300))
			_, err := rnd.Read(val)
			Expect(err).NotTo(HaveOccurred())
			Expect(subject.Append(val, id)).To(Succeed())
			size += chaindict.EncodedEntrySize(val)
		}

		data, err := subject.Finish()
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(HaveLen(size))
		Expect(data[:8]).To(Equal([]byte{99, 100, 49, 200, 7, 142, 91, 214}))

		hdr, err := chaindict.ReadHeader(data)
		Expect(err).NotTo(HaveOccurred())
		Expect(hdr).To(Equal(chaindict.Header{
			Version:    1,
			Kind:       chaindict.KindDelta,
			LinkIndex:  3,
			BaseID:     20,
			EntryCount: 10000,
		}))
	})
})

var _ = Describe("DecodeLinkFile", func() {
	apple := chaindict.Entry{Value: []byte("apple"), ID: 0}
	banana := chaindict.Entry{Value: []byte("banana"), ID: 1}
	cherry := chaindict.Entry{Value: []byte("cherry"), ID: 2}

	It("should decode deltas", func() {
		f, err := chaindict.DecodeLinkFile(mustEncode(chaindict.KindDelta, 1, 2, cherry))
		Expect(err).NotTo(HaveOccurred())
		Expect(f.Header).To(Equal(chaindict.Header{Version: 1, Kind: chaindict.KindDelta, LinkIndex: 1, BaseID: 2, EntryCount: 1}))
		Expect(f.Entries).To(Equal([]chaindict.Entry{cherry}))
		Expect(f.NewEntries()).To(Equal(uint32(1)))
		Expect(f.Total()).To(Equal(uint32(3)))
		Expect(f.Size()).To(Equal(28 + 11))
	})

	It("should decode snapshots", func() {
		f, err := chaindict.DecodeLinkFile(mustEncode(chaindict.KindSnapshot, 1, 2, apple, banana, cherry))
		Expect(err).NotTo(HaveOccurred())
		Expect(f.Header).To(Equal(chaindict.Header{Version: 1, Kind: chaindict.KindSnapshot, LinkIndex: 1, BaseID: 2, EntryCount: 3}))
		Expect(f.Entries).To(Equal([]chaindict.Entry{apple, banana, cherry}))
		Expect(f.NewEntries()).To(Equal(uint32(1)))
		Expect(f.Total()).To(Equal(uint32(3)))
	})

	It("should decode empty files", func() {
		f, err := chaindict.DecodeLinkFile(mustEncode(chaindict.KindDelta, 0, 0))
		Expect(err).NotTo(HaveOccurred())
		Expect(f.Entries).To(BeEmpty())
	})

	It("should detect corruption", func() {
		data := mustEncode(chaindict.KindDelta, 0, 0, apple, banana)
		for i := range data {
			bad := append([]byte(nil), data...)
			bad[i] ^= 0x10

			_, err := chaindict.DecodeLinkFile(bad)
			Expect(err).To(HaveOccurred(), "for byte %d", i)
			Expect(chaindict.Classify(err)).To(Equal(chaindict.ClassFile), "for byte %d", i)
		}

		data[30] ^= 0x01
		_, err := chaindict.DecodeLinkFile(data)
		Expect(err).To(matchErr(chaindict.ErrCorruptFile))
	})

	It("should reject short files", func() {
		data := mustEncode(chaindict.KindDelta, 0, 0)
		_, err := chaindict.DecodeLinkFile(data[:27])
		Expect(err).To(matchErr(chaindict.ErrMalformedHeader))
		_, err = chaindict.DecodeLinkFile(nil)
		Expect(err).To(matchErr(chaindict.ErrMalformedHeader))
	})

	It("should reject bad magic", func() {
		data := mustEncode(chaindict.KindDelta, 0, 0, apple)
		data[0] = 'x'
		_, err := chaindict.DecodeLinkFile(reseal(data))
		Expect(err).To(MatchError(`chaindict: malformed header: bad magic byte sequence`))
	})

	It("should reject unknown versions", func() {
		data := mustEncode(chaindict.KindDelta, 0, 0, apple)
		data[8] = 2
		_, err := chaindict.DecodeLinkFile(reseal(data))
		Expect(err).To(matchErr(chaindict.ErrUnsupportedVersion))
		Expect(chaindict.Classify(err)).To(Equal(chaindict.ClassFile))

		data[8] = 0
		_, err = chaindict.DecodeLinkFile(reseal(data))
		Expect(err).To(matchErr(chaindict.ErrMalformedHeader))
	})

	It("should reject bad kinds", func() {
		for _, kind := range []byte{0, 3, 255} {
			data := mustEncode(chaindict.KindDelta, 0, 0, apple)
			data[10] = kind
			_, err := chaindict.DecodeLinkFile(reseal(data))
			Expect(err).To(MatchError(fmt.Sprintf(`chaindict: malformed header: bad file kind %d`, kind)))
		}
	})

	It("should reject reserved bits", func() {
		data := mustEncode(chaindict.KindDelta, 0, 0, apple)
		data[11] = 1
		_, err := chaindict.DecodeLinkFile(reseal(data))
		Expect(err).To(matchErr(chaindict.ErrMalformedHeader))
	})

	It("should reject inconsistent snapshot headers", func() {
		data := mustEncode(chaindict.KindSnapshot, 0, 0, apple)
		binary.LittleEndian.PutUint32(data[16:], 2)
		_, err := chaindict.DecodeLinkFile(reseal(data))
		Expect(err).To(matchErr(chaindict.ErrMalformedHeader))
	})

	It("should reject bogus entry counts", func() {
		data := mustEncode(chaindict.KindDelta, 0, 0, apple)
		binary.LittleEndian.PutUint32(data[20:], 1<<31)
		_, err := chaindict.DecodeLinkFile(reseal(data))
		Expect(err).To(matchErr(chaindict.ErrMalformedHeader))

		binary.LittleEndian.PutUint32(data[20:], 2)
		_, err = chaindict.DecodeLinkFile(reseal(data))
		Expect(err).To(matchErr(chaindict.ErrMalformedHeader))
		Expect(err).To(matchErr(chaindict.ErrTruncatedEntry))
	})

	It("should reject trailing bytes", func() {
		data := mustEncode(chaindict.KindDelta, 0, 0, apple)
		end := len(data) - 4
		data = append(data[:end:end], 0, 0, 0, 0, 0)
		_, err := chaindict.DecodeLinkFile(reseal(data))
		Expect(err).To(MatchError(`chaindict: malformed header: 1 trailing bytes after 1 entries`))
	})

	It("should reject out-of-sequence ids", func() {
		data := mustEncode(chaindict.KindDelta, 0, 0, apple, banana)
		// banana's id, after 24 header bytes, apple's 10 and banana's length and value
		binary.LittleEndian.PutUint32(data[24+10+7:], 2)
		_, err := chaindict.DecodeLinkFile(reseal(data))
		Expect(err).To(MatchError(`chaindict: malformed header: entry 1 has id 2, expected 1`))
	})

	It("should reject deltas overflowing the id space", func() {
		data := mustEncode(chaindict.KindDelta, 0, 0, apple)
		binary.LittleEndian.PutUint32(data[16:], 1<<32-1)
		_, err := chaindict.DecodeLinkFile(reseal(data))
		Expect(err).To(matchErr(chaindict.ErrMalformedHeader))
	})
})
