// package formatter provides functions to export library data to various formats (CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/shared"
)

// posterBaseURL is TMDB's image CDN prefix for medium-width posters.
const posterBaseURL = "https://image.tmdb.org/t/p/w500"

// PosterURL returns the full CDN URL for a video's poster, empty when the
// video has none.
func PosterURL(video *models.Video) string {
	if video == nil || video.PosterPath == "" {
		return ""
	}
	return posterBaseURL + video.PosterPath
}

// ExportToCSV converts a Library to CSV format with columns: VideoID, Title, Year, Rating, AddedAt
func ExportToCSV(library *models.Library) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"VideoID", "Title", "Year", "Rating", "AddedAt"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, entry := range library.Entries {
		title, year, rating := entryColumns(entry)
		record := []string{
			entry.Edge.VideoID,
			title,
			year,
			rating,
			entry.Edge.AddedAt.Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a Library to Markdown format with optional cover image
func ExportToMarkdown(library *models.Library, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s's Library\n\n", library.User.DisplayName()))

	if imageFilename != "" {
		buf.WriteString(fmt.Sprintf("![Cover](%s)\n\n", imageFilename))
	}

	buf.WriteString(fmt.Sprintf("**Favorites**: %d\n\n", len(library.Entries)))

	buf.WriteString("## Movies\n\n")
	for i, entry := range library.Entries {
		if entry.Video == nil {
			buf.WriteString(fmt.Sprintf("%d. (unavailable) [id %s]\n", i+1, entry.Edge.VideoID))
			continue
		}
		year := shared.ReleaseYear(entry.Video.ReleaseDate)
		yearPart := ""
		if year != "" {
			yearPart = fmt.Sprintf(" (%s)", year)
		}
		buf.WriteString(fmt.Sprintf("%d. %s%s [%s]\n", i+1, entry.Video.Title, yearPart, shared.FormatRating(entry.Video.Rating)))
	}

	return buf.Bytes(), nil
}

// ExportToText converts a Library to plain text format
func ExportToText(library *models.Library) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Library: %s\n", library.User.DisplayName()))
	buf.WriteString(fmt.Sprintf("Favorites: %d\n\n", len(library.Entries)))

	for i, entry := range library.Entries {
		if entry.Video == nil {
			buf.WriteString(fmt.Sprintf("%d. (unavailable) [id %s]\n", i+1, entry.Edge.VideoID))
			continue
		}
		buf.WriteString(fmt.Sprintf("%d. %s\n", i+1, entry.Video.Title))
	}

	return buf.Bytes(), nil
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// ToMetadataJSON generates a JSON representation of the library owner
func ToMetadataJSON(user models.User) ([]byte, error) {
	return shared.MarshalJSON(user, true)
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	EntriesFile  string
	MetadataFile string
}

// WriteCSVExport exports a library to CSV format with accompanying metadata JSON file.
//
// Defaults to the user ID as the base filename & creates {base}_library.csv and {base}_metadata.json
func WriteCSVExport(library *models.Library, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = library.User.ID
	}

	csvData, err := ExportToCSV(library)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	entriesFile := baseFilepath + "_library.csv"
	if err := os.WriteFile(entriesFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	metadataJSON, err := ToMetadataJSON(library.User)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metadataFile := baseFilepath + "_metadata.json"
	if err := os.WriteFile(metadataFile, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{
		EntriesFile:  entriesFile,
		MetadataFile: metadataFile,
	}, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory  string
	Files      []string
	CoverImage string
}

// WriteMarkdownExport exports a library to Markdown format in a dedicated directory.
//
// Directory name defaults to the user ID. The cover image is the poster of
// the first entry with one, downloaded best-effort.
// Creates a directory structure: {dir}/README.md and optionally {dir}/cover.jpg
func WriteMarkdownExport(library *models.Library, outputDir string) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = library.User.ID
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{
		Directory: outputDir,
		Files:     []string{},
	}

	var coverImageFilename string
	if imageURL := coverURL(library); imageURL != "" {
		imageData, err := DownloadImage(imageURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to download cover image: %v\n", err)
		} else {
			coverImageFilename = "cover.jpg"
			coverImagePath := fmt.Sprintf("%s/%s", outputDir, coverImageFilename)
			if err := os.WriteFile(coverImagePath, imageData, 0644); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to save cover image: %v\n", err)
				coverImageFilename = ""
			} else {
				result.CoverImage = coverImagePath
				result.Files = append(result.Files, coverImagePath)
			}
		}
	}

	mdData, err := ExportToMarkdown(library, coverImageFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := fmt.Sprintf("%s/README.md", outputDir)
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}

	result.Files = append(result.Files, mdFile)

	return result, nil
}

// WriteTextExport exports a library to plain text format.
//
// Defaults to {user.ID}_library.txt as the filename.
func WriteTextExport(library *models.Library, filepath string) (string, error) {
	if filepath == "" {
		filepath = fmt.Sprintf("%s_library.txt", library.User.ID)
	}

	textData, err := ExportToText(library)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(filepath, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}

	return filepath, nil
}

func entryColumns(entry models.LibraryEntry) (title, year, rating string) {
	if entry.Video == nil {
		return "", "", ""
	}
	return entry.Video.Title,
		shared.ReleaseYear(entry.Video.ReleaseDate),
		strconv.FormatFloat(entry.Video.Rating, 'f', 1, 64)
}

func coverURL(library *models.Library) string {
	for _, entry := range library.Entries {
		if url := PosterURL(entry.Video); url != "" {
			return url
		}
	}
	return ""
}
