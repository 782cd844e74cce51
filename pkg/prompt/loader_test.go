package prompt_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/bpmnchat/pkg/prompt"
)

var _ = Describe("Loader", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	It("uses the built-in prompt without a path", func() {
		l, err := prompt.NewLoader("", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(l.Prompt()).To(Equal(prompt.Default()))
		Expect(l.Prompt()).To(ContainSubstring("BPMN 2.0"))
		Expect(l.Reload()).To(Succeed())
	})

	It("reads and trims the prompt file", func() {
		path := filepath.Join(dir, "system_prompt.txt")
		Expect(os.WriteFile(path, []byte("  be terse \n"), 0o644)).To(Succeed())

		l, err := prompt.NewLoader(path, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(l.Prompt()).To(Equal("be terse"))
		Expect(l.Path()).To(Equal(path))
	})

	It("fails on a missing file", func() {
		_, err := prompt.NewLoader(filepath.Join(dir, "missing.txt"), nil)
		Expect(err).To(HaveOccurred())
	})

	It("keeps the previous prompt when the file is emptied", func() {
		path := filepath.Join(dir, "p.txt")
		Expect(os.WriteFile(path, []byte("first"), 0o644)).To(Succeed())
		l, err := prompt.NewLoader(path, nil)
		Expect(err).NotTo(HaveOccurred())

		Expect(os.WriteFile(path, []byte("   "), 0o644)).To(Succeed())
		Expect(l.Reload()).To(HaveOccurred())
		Expect(l.Prompt()).To(Equal("first"))
	})

	It("reloads when the file changes", func() {
		path := filepath.Join(dir, "p.txt")
		Expect(os.WriteFile(path, []byte("first"), 0o644)).To(Succeed())
		l, err := prompt.NewLoader(path, nil)
		Expect(err).NotTo(HaveOccurred())

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- l.Watch(ctx) }()
		DeferCleanup(func() {
			cancel()
			Eventually(done, 2*time.Second).Should(Receive(BeNil()))
		})

		Eventually(func() string {
			_ = os.WriteFile(path, []byte("second"), 0o644)
			return l.Prompt()
		}, 3*time.Second, 50*time.Millisecond).Should(Equal("second"))
	})
})
