package batch

import (
	"io/fs"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalStorage", func() {
	var (
		basePath string
		storage  *LocalStorage
	)

	BeforeEach(func() {
		basePath = filepath.Join(GinkgoT().TempDir(), "files")
		var err error
		storage, err = NewLocalStorage(basePath)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should create the base directory", func() {
		info, err := os.Stat(basePath)
		Expect(err).NotTo(HaveOccurred())
		Expect(info.IsDir()).To(BeTrue())
	})

	Describe("Save", func() {
		It("should write the file and return its name", func() {
			name, err := storage.Save("a_invoice.pdf", []byte("%PDF"))
			Expect(err).NotTo(HaveOccurred())
			Expect(name).To(Equal("a_invoice.pdf"))
			Expect(os.ReadFile(filepath.Join(basePath, "a_invoice.pdf"))).To(Equal([]byte("%PDF")))
		})

		DescribeTable("rejecting names outside the directory",
			func(name string) {
				_, err := storage.Save(name, []byte("x"))
				Expect(err).To(MatchError(ErrInvalidName))
			},
			Entry("empty", ""),
			Entry("parent", ".."),
			Entry("nested", "sub/file.txt"),
			Entry("escaping", "../file.txt"),
		)
	})

	Describe("Get", func() {
		BeforeEach(func() {
			_, err := storage.Save("stored.txt", []byte("hello"))
			Expect(err).NotTo(HaveOccurred())
		})

		It("should read the stored file", func() {
			Expect(storage.Get("stored.txt")).To(Equal([]byte("hello")))
		})

		When("file does not exist", func() {
			It("should return a not-exist error", func() {
				_, err := storage.Get("missing.txt")
				Expect(err).To(MatchError(fs.ErrNotExist))
			})
		})
	})

	Describe("Delete", func() {
		BeforeEach(func() {
			_, err := storage.Save("stored.txt", []byte("hello"))
			Expect(err).NotTo(HaveOccurred())
		})

		It("should remove the file", func() {
			Expect(storage.Delete("stored.txt")).To(Succeed())
			_, err := os.Stat(filepath.Join(basePath, "stored.txt"))
			Expect(os.IsNotExist(err)).To(BeTrue())
		})

		When("file does not exist", func() {
			It("should return an error", func() {
				Expect(storage.Delete("missing.txt")).To(HaveOccurred())
			})
		})
	})
})
