package transcript_test

import (
	"fmt"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/parley/pkg/transcript"
)

var _ = Describe("Log", func() {
	var log *transcript.Log

	BeforeEach(func() {
		log = transcript.NewLog()
	})

	Describe("Append", func() {
		It("preserves insertion order", func() {
			log.Append(transcript.RoleUser, "hello", nil)
			log.Append(transcript.RoleAssistant, "hi there", []string{"gpt-3.5-turbo"})
			log.Append(transcript.RoleUser, "how are you?", nil)

			turns := log.Snapshot()
			Expect(turns).To(HaveLen(3))
			Expect(turns[0].Text).To(Equal("hello"))
			Expect(turns[1].Text).To(Equal("hi there"))
			Expect(turns[2].Text).To(Equal("how are you?"))
		})

		It("assigns strictly increasing IDs", func() {
			a := log.Append(transcript.RoleUser, "one", nil)
			b := log.Append(transcript.RoleUser, "two", nil)
			c := log.Append(transcript.RoleUser, "three", nil)

			Expect(b.ID).To(BeNumerically(">", a.ID))
			Expect(c.ID).To(BeNumerically(">", b.ID))
		})

		It("never collides IDs for turns created in the same instant", func() {
			seen := make(map[int64]bool)
			for i := 0; i < 100; i++ {
				turn := log.Append(transcript.RoleUser, "burst", nil)
				Expect(seen[turn.ID]).To(BeFalse())
				seen[turn.ID] = true
			}
		})

		It("records a creation timestamp", func() {
			turn := log.Append(transcript.RoleUser, "hello", nil)
			Expect(turn.CreatedAt.IsZero()).To(BeFalse())
		})

		It("carries sources only when given", func() {
			user := log.Append(transcript.RoleUser, "hello", nil)
			assistant := log.Append(transcript.RoleAssistant, "hi", []string{"gpt-3.5-turbo"})

			Expect(user.Sources).To(BeNil())
			Expect(assistant.Sources).To(Equal([]string{"gpt-3.5-turbo"}))
		})

		It("copies the sources slice on append", func() {
			sources := []string{"gpt-3.5-turbo"}
			turn := log.Append(transcript.RoleAssistant, "hi", sources)

			sources[0] = "tampered"
			Expect(turn.Sources).To(Equal([]string{"gpt-3.5-turbo"}))
		})
	})

	Describe("Hash chain", func() {
		It("starts with an unparented turn", func() {
			turn := log.Append(transcript.RoleUser, "hello", nil)

			Expect(turn.Hash).To(HaveLen(64))
			Expect(turn.Hash).To(MatchRegexp("^[a-f0-9]{64}$"))
			Expect(turn.ParentHash).To(BeNil())
		})

		It("links each turn to its predecessor", func() {
			log.Append(transcript.RoleUser, "hello", nil)
			log.Append(transcript.RoleAssistant, "hi", []string{"gpt-3.5-turbo"})
			log.Append(transcript.RoleUser, "bye", nil)

			turns := log.Snapshot()
			Expect(turns[0].ParentHash).To(BeNil())
			for i := 1; i < len(turns); i++ {
				Expect(turns[i].ParentHash).NotTo(BeNil())
				Expect(*turns[i].ParentHash).To(Equal(turns[i-1].Hash))
			}
		})

		It("produces distinct hashes for identical texts", func() {
			a := log.Append(transcript.RoleUser, "same", nil)
			b := log.Append(transcript.RoleUser, "same", nil)

			Expect(a.Hash).NotTo(Equal(b.Hash))
		})
	})

	Describe("Snapshot", func() {
		It("returns an empty slice for an empty log", func() {
			Expect(log.Snapshot()).To(BeEmpty())
		})

		It("does not alias internal storage", func() {
			log.Append(transcript.RoleAssistant, "hi", []string{"gpt-3.5-turbo"})

			snapshot := log.Snapshot()
			snapshot[0].Text = "tampered"
			snapshot[0].Sources[0] = "tampered"

			fresh := log.Snapshot()
			Expect(fresh[0].Text).To(Equal("hi"))
			Expect(fresh[0].Sources).To(Equal([]string{"gpt-3.5-turbo"}))
		})

		It("does not expose the stored chain through parent hash pointers", func() {
			log.Append(transcript.RoleUser, "hello", nil)
			log.Append(transcript.RoleAssistant, "hi", nil)

			snapshot := log.Snapshot()
			Expect(snapshot[1].ParentHash).NotTo(BeNil())
			*snapshot[1].ParentHash = "tampered"

			fresh := log.Snapshot()
			Expect(*fresh[1].ParentHash).To(Equal(fresh[0].Hash))
		})

		It("does not expose the stored chain through appended turns", func() {
			log.Append(transcript.RoleUser, "hello", nil)
			appended := log.Append(transcript.RoleAssistant, "hi", nil)

			Expect(appended.ParentHash).NotTo(BeNil())
			*appended.ParentHash = "tampered"

			fresh := log.Snapshot()
			Expect(*fresh[1].ParentHash).To(Equal(fresh[0].Hash))
		})
	})

	Describe("concurrent appends", func() {
		It("keeps every turn and every ID unique", func() {
			const writers = 8
			const perWriter = 25

			var wg sync.WaitGroup
			wg.Add(writers)
			for w := 0; w < writers; w++ {
				go func(w int) {
					defer wg.Done()
					for i := 0; i < perWriter; i++ {
						log.Append(transcript.RoleUser, fmt.Sprintf("w%d-%d", w, i), nil)
					}
				}(w)
			}
			wg.Wait()

			turns := log.Snapshot()
			Expect(turns).To(HaveLen(writers * perWriter))

			ids := make(map[int64]bool)
			for i, turn := range turns {
				Expect(ids[turn.ID]).To(BeFalse())
				ids[turn.ID] = true
				if i > 0 {
					Expect(*turn.ParentHash).To(Equal(turns[i-1].Hash))
				}
			}
		})
	})
})
