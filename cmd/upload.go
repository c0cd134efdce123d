package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/chinmay1088/bundlr-go/dataitem"
	"github.com/chinmay1088/bundlr-go/upload"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a file",
	Long: `Sign a file as a data item and upload it, paid from your bundler
balance. A Content-Type tag is added from the file type.

Examples:
  bundlr upload photo.png -c solana -w id.json
  bundlr upload index.html -c arweave -w wallet.json -t App-Name=site`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().StringArrayP("tag", "t", nil, "tag as Name=Value, repeatable")
	uploadCmd.Flags().String("content-type", "", "override the detected content type")
}

func parseTags(raw []string) ([]dataitem.Tag, error) {
	tags := make([]dataitem.Tag, 0, len(raw))
	for _, r := range raw {
		name, value, ok := strings.Cut(r, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid tag %q, want Name=Value", r)
		}
		tags = append(tags, dataitem.Tag{Name: name, Value: value})
	}
	return tags, nil
}

func readWithProgress(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	var buf bytes.Buffer
	buf.Grow(int(info.Size()))
	var w io.Writer = &buf
	if !quiet {
		bar := progressbar.NewOptions64(info.Size(),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(50),
			progressbar.OptionSetDescription("[cyan][1/2][reset] Reading "+filepath.Base(path)),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:     "[green]=[reset]",
				SaucerHead: "[green]>[reset]",
				BarStart:   "[",
				BarEnd:     "]",
			}),
			progressbar.OptionOnCompletion(func() { fmt.Println() }),
		)
		w = io.MultiWriter(&buf, bar)
	}
	if _, err := io.Copy(w, f); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return buf.Bytes(), nil
}

func runUpload(cmd *cobra.Command, args []string) error {
	path := args[0]
	rawTags, _ := cmd.Flags().GetStringArray("tag")
	tags, err := parseTags(rawTags)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	s, err := newSession(ctx, true)
	if err != nil {
		return err
	}
	defer s.close()

	data, err := readWithProgress(path)
	if err != nil {
		return err
	}

	price, err := s.bundlr.GetPrice(ctx, int64(len(data)))
	if err != nil {
		return fmt.Errorf("failed to get price: %w", err)
	}
	c := s.bundlr.Currency().Config()
	printf("🏷️  Cost: %s\n", formatAmount(c, price))

	contentType, _ := cmd.Flags().GetString("content-type")
	if contentType == "" {
		contentType = upload.ContentType(path, data)
	}
	opts := upload.WithContentType(dataitem.Options{Tags: tags}, contentType)

	printf("[2/2] Signing and uploading...\n")
	res, err := s.bundlr.Upload(ctx, data, opts)
	if errors.Is(err, upload.ErrInsufficientFunds) {
		fmt.Printf("%s balance too low. Fund it with 'bundlr fund %s -c %s'\n", warn("⚠️"), price.String(), c.Name)
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to upload: %w", err)
	}

	if res.AlreadyReceived {
		fmt.Printf("%s Already uploaded: %s\n", warn("ℹ️"), accent(res.ID))
		return nil
	}
	fmt.Printf("%s Uploaded: %s\n", success("✅"), accent(res.ID))
	printf("   https://arweave.net/%s\n", res.ID)
	return nil
}
