package dotdir_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/bpmnchat/pkg/dotdir"
)

var _ = Describe("Manager", func() {
	var (
		root string
		work string
		home string
		m    *dotdir.Manager
	)

	BeforeEach(func() {
		var err error
		// EvalSymlinks keeps paths comparable with filepath.Abs on macOS.
		root, err = filepath.EvalSymlinks(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())

		work = filepath.Join(root, "work")
		home = filepath.Join(root, "home")
		Expect(os.MkdirAll(work, 0o755)).To(Succeed())
		Expect(os.MkdirAll(home, 0o755)).To(Succeed())

		origDir, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(work)).To(Succeed())
		DeferCleanup(os.Chdir, origDir)
		GinkgoT().Setenv("HOME", home)

		m = dotdir.NewManager()
	})

	Describe("Target", func() {
		It("creates and returns an override directory", func() {
			override := filepath.Join(root, "custom", "config")

			dir, err := m.Target(override)
			Expect(err).NotTo(HaveOccurred())
			Expect(dir).To(Equal(override))
			Expect(dir).To(BeADirectory())
		})

		It("makes a relative override absolute", func() {
			dir, err := m.Target("rel")
			Expect(err).NotTo(HaveOccurred())
			Expect(dir).To(Equal(filepath.Join(work, "rel")))
		})

		It("prefers the override over a local directory", func() {
			Expect(os.Mkdir(filepath.Join(work, ".bpmnchat"), 0o755)).To(Succeed())
			override := filepath.Join(root, "override")

			Expect(m.Target(override)).To(Equal(override))
		})

		It("prefers a local directory over the home directory", func() {
			local := filepath.Join(work, ".bpmnchat")
			Expect(os.Mkdir(local, 0o755)).To(Succeed())
			Expect(os.Mkdir(filepath.Join(home, ".bpmnchat"), 0o755)).To(Succeed())

			Expect(m.Target("")).To(Equal(local))
		})

		It("falls back to the home directory", func() {
			homeDir := filepath.Join(home, ".bpmnchat")
			Expect(os.Mkdir(homeDir, 0o755)).To(Succeed())

			Expect(m.Target("")).To(Equal(homeDir))
		})

		It("ignores a local file named .bpmnchat", func() {
			Expect(os.WriteFile(filepath.Join(work, ".bpmnchat"), nil, 0o644)).To(Succeed())

			Expect(m.Target("")).To(BeEmpty())
		})

		It("returns empty when no directory exists", func() {
			Expect(m.Target("")).To(BeEmpty())
		})
	})

	Describe("CreateHome", func() {
		It("creates the home directory that Target then finds", func() {
			dir, err := m.CreateHome()
			Expect(err).NotTo(HaveOccurred())
			Expect(dir).To(Equal(filepath.Join(home, ".bpmnchat")))
			Expect(dir).To(BeADirectory())

			Expect(m.Target("")).To(Equal(dir))
		})

		It("is idempotent", func() {
			first, err := m.CreateHome()
			Expect(err).NotTo(HaveOccurred())
			second, err := m.CreateHome()
			Expect(err).NotTo(HaveOccurred())
			Expect(second).To(Equal(first))
		})
	})
})
