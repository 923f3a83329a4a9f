package knowledge_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/xeleb-ai/xeleb/pkg/knowledge"
	"github.com/xeleb-ai/xeleb/pkg/logger"
	testutils "github.com/xeleb-ai/xeleb/pkg/utils/test"
)

var _ = Describe("Watcher", func() {
	var (
		dir      string
		driver   *testutils.MockVectorDriver
		ingester *knowledge.Ingester
		cancel   context.CancelFunc
		done     chan error
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		driver = testutils.NewMockVectorDriver()
		ingester = knowledge.NewIngester(testutils.NewMockEmbedder(), driver, logger.Nop(),
			knowledge.WithRateLimit(0),
		)

		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		done = make(chan error, 1)

		w := knowledge.NewWatcher(dir, ingester, 20*time.Millisecond, logger.Nop())
		go func() { done <- w.Run(ctx) }()

		// give fsnotify a moment to register the directory
		time.Sleep(50 * time.Millisecond)
	})

	AfterEach(func() {
		cancel()
		Eventually(done).Should(Receive(BeNil()))
	})

	It("ingests markdown files as they are written", func() {
		writeFile(dir, "faq.md", "Shipping takes two days.\n")

		Eventually(func() bool {
			_, ok := driver.Document(idFor("faq.md"))
			return ok
		}).WithTimeout(2 * time.Second).Should(BeTrue())
	})

	It("ignores files that are not knowledge documents", func() {
		writeFile(dir, "notes.txt", "plain")

		Consistently(driver.DocumentCount).WithTimeout(200 * time.Millisecond).Should(BeZero())
	})

	It("removes the stored document when the file is deleted", func() {
		path := writeFile(dir, "gone.md", "Temporary.\n")
		Eventually(driver.DocumentCount).WithTimeout(2 * time.Second).Should(Equal(1))

		Expect(os.Remove(path)).To(Succeed())
		Eventually(driver.DeletedIDs).WithTimeout(2 * time.Second).Should(ContainElement(idFor("gone.md")))
	})
})

var _ = Describe("Watcher setup", func() {
	It("fails for a missing directory", func() {
		w := knowledge.NewWatcher(filepath.Join(GinkgoT().TempDir(), "missing"), nil, 0, logger.Nop())
		err := w.Run(context.Background())
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("watching knowledge dir"))
	})
})

var _ = Describe("Scheduler", func() {
	var ingester *knowledge.Ingester

	BeforeEach(func() {
		ingester = knowledge.NewIngester(testutils.NewMockEmbedder(), testutils.NewMockVectorDriver(), logger.Nop())
	})

	It("accepts descriptors", func() {
		s, err := knowledge.NewScheduler("@hourly", GinkgoT().TempDir(), ingester, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		s.Start()
		s.Stop(context.Background())
	})

	It("accepts five field expressions", func() {
		_, err := knowledge.NewScheduler("*/5 * * * *", GinkgoT().TempDir(), ingester, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
	})

	It("rejects invalid schedules", func() {
		_, err := knowledge.NewScheduler("every tuesday", GinkgoT().TempDir(), ingester, logger.Nop())
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("invalid ingest schedule"))
	})
})
