package inmemory_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/bpmnchat/pkg/storage"
	"github.com/papercomputeco/bpmnchat/pkg/storage/inmemory"
	"github.com/papercomputeco/bpmnchat/pkg/storage/storagetest"
)

var _ = Describe("Driver", func() {
	storagetest.DescribeDriver(func() storage.Driver {
		return inmemory.NewDriver()
	})

	It("returns copies", func() {
		d := inmemory.NewDriver()
		rec := storagetest.NewRecord("a", 0, "rendered")
		Expect(d.Put(context.Background(), rec)).To(Succeed())

		rec.Outcome = "mutated"
		got, err := d.Get(context.Background(), "a")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Outcome).To(Equal("rendered"))
	})
})
