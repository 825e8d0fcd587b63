package htmlgen_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/modelcat/modelcat/htmlgen"
	"github.com/modelcat/modelcat/models"
	"github.com/modelcat/modelcat/store"
)

var _ = Describe("Generator", func() {
	var (
		dir       string
		records   *store.FSStore
		generator *htmlgen.Generator
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		var err error
		records, err = store.NewFSStore(dir)
		Expect(err).NotTo(HaveOccurred())
		generator = htmlgen.New(records, "test")
	})

	record := func(baseName string) *models.ModelRecord {
		return &models.ModelRecord{
			BaseName: baseName,
			Hash: models.HashInfo{
				HashType:  "SHA256",
				HashValue: "feedface",
				Filename:  baseName + ".safetensors",
			},
			Version: &models.VersionInfo{
				ID:           1,
				ModelID:      2,
				Name:         "v2.0",
				BaseModel:    "SDXL",
				TrainedWords: []string{"trigger word"},
				UpdatedAt:    time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
				Stats:        models.VersionStats{DownloadCount: 77},
			},
			Model: &models.ModelInfo{
				ID:          2,
				Name:        "Painterly Style",
				Type:        "LORA",
				Tags:        []string{"style", "painting"},
				Description: "<p>A painterly style.</p>",
				Creator:     models.Creator{Username: "alice"},
			},
			Previews:    []string{baseName + "_preview_0.jpeg", baseName + "_preview_1.mp4"},
			ProcessedAt: time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC),
		}
	}

	Describe("ModelPage", func() {
		It("renders the detail page into the record directory", func() {
			r := record("painterly")
			Expect(records.Save(r)).To(Succeed())
			Expect(generator.ModelPage(r)).To(Succeed())

			page, err := os.ReadFile(filepath.Join(records.RecordDir("painterly"), "painterly.html"))
			Expect(err).NotTo(HaveOccurred())
			content := string(page)
			Expect(content).To(ContainSubstring("Painterly Style"))
			Expect(content).To(ContainSubstring("trigger word"))
			Expect(content).To(ContainSubstring("feedface"))
			Expect(content).To(ContainSubstring("painterly_preview_0.jpeg"))
			Expect(content).To(ContainSubstring("<video"), "mp4 previews render as video elements")

			fi, err := os.Stat(filepath.Join(records.RecordDir("painterly"), "painterly.html"))
			Expect(err).NotTo(HaveOccurred())
			Expect(fi.Mode().Perm()).To(Equal(os.FileMode(0644)), "pages must stay readable after the atomic write")
		})

		It("includes rendered notes when NOTES.md exists", func() {
			r := record("noted")
			Expect(records.Save(r)).To(Succeed())
			notes := filepath.Join(records.RecordDir("noted"), htmlgen.NotesFileName)
			Expect(os.WriteFile(notes, []byte("# My Notes\n\nworks best at 0.8"), 0644)).To(Succeed())

			Expect(generator.ModelPage(r)).To(Succeed())
			page, err := os.ReadFile(filepath.Join(records.RecordDir("noted"), "noted.html"))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(page)).To(ContainSubstring("<h1>My Notes</h1>"))
			Expect(string(page)).To(ContainSubstring("works best at 0.8"))
		})

		It("rejects a nil record", func() {
			Expect(generator.ModelPage(nil)).NotTo(Succeed())
		})
	})

	Describe("RegenerateAll", func() {
		It("renders every stored record", func() {
			for _, name := range []string{"one", "two"} {
				r := record(name)
				Expect(records.Save(r)).To(Succeed())
			}

			count, err := generator.RegenerateAll()
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(2))
			for _, name := range []string{"one", "two"} {
				_, err := os.Stat(filepath.Join(records.RecordDir(name), name+".html"))
				Expect(err).NotTo(HaveOccurred())
			}
		})
	})

	Describe("Overview", func() {
		It("groups models by type into index.html", func() {
			entries := []models.CatalogEntry{
				{BaseName: "lora_a", Name: "Lora A", Type: "LORA", DownloadCount: 10},
				{BaseName: "lora_b", Name: "Lora B", Type: "LORA", DownloadCount: 50},
				{BaseName: "ckpt_a", Name: "Ckpt A", Type: "Checkpoint", DownloadCount: 5},
			}
			Expect(generator.Overview(entries)).To(Succeed())

			page, err := os.ReadFile(filepath.Join(dir, "index.html"))
			Expect(err).NotTo(HaveOccurred())
			content := string(page)
			Expect(content).To(ContainSubstring("LORA"))
			Expect(content).To(ContainSubstring("Checkpoint"))
			Expect(content).To(ContainSubstring("lora_b/lora_b.html"))
		})
	})
})
