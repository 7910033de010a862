package importer_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/felo/classifier-console/internal/api"
	"github.com/felo/classifier-console/internal/api/apitest"
	"github.com/felo/classifier-console/internal/importer"
	"github.com/felo/classifier-console/internal/scanner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleEML = "From: John Doe <john.doe@example.com>\r\n" +
	"To: support@example.com\r\n" +
	"Subject: Integration Test Email\r\n" +
	"Date: Mon, 1 Jan 2024 10:00:00 +0000\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"This is an integration test email.\r\n"

// TestEndToEndWorkflow runs scanning, conversion, upload and retrieval
func TestEndToEndWorkflow(t *testing.T) {
	// Step 1: Set up a folder with one file of each supported kind
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sample.eml"), []byte(sampleEML), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "batch"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "batch", "two.json"), []byte(`[
		{"from_address": "billing@example.com", "subject": "Invoice", "body": "Charged twice"},
		{"sender": "fan@example.com", "content": "Love the product"}
	]`), 0644))

	// Step 2: Start the fake classifier
	srv := apitest.NewServer()
	defer srv.Close()
	srv.Categorize = func(in api.EmailCreate) api.Category {
		if in.Subject == "Invoice" {
			return api.CategoryBilling
		}
		return api.CategoryOther
	}
	client := api.NewClient(srv.URL)

	emails, err := client.ListEmails(context.Background(), api.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, emails, "API should start empty")

	// Step 3: Scan for files
	files, err := scanner.NewScanner(dir).Scan()
	require.NoError(t, err, "Should scan directory")
	assert.Equal(t, []string{"batch/two.json", "sample.eml"}, files)

	// Step 4: Import
	sources, err := importer.SourcesFromDir(dir)
	require.NoError(t, err)
	result, err := importer.New(false).Run(context.Background(), client, sources, nil)
	require.NoError(t, err, "Should upload all files")

	assert.Equal(t, 3, result.SuccessCount)
	assert.Equal(t, 0, result.FailedCount)
	assert.Equal(t, "Processed 2 files: 3 emails succeeded, 0 failed", result.Message)
	assert.ElementsMatch(t, []string{"two.json", "sample.json"}, srv.LastRequest().Files)

	// Step 5: Verify emails are retrievable
	emails, err = client.ListEmails(context.Background(), api.ListOptions{
		SortBy:    api.SortBySubject,
		SortOrder: api.SortAsc,
	})
	require.NoError(t, err)
	require.Len(t, emails, 3)

	subjects := make([]string, 0, len(emails))
	for _, e := range emails {
		subjects = append(subjects, e.Subject)
	}
	assert.Equal(t, []string{"Integration Test Email", "Invoice", "No Subject"}, subjects)

	email, err := client.GetEmail(context.Background(), emails[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "john.doe@example.com", email.FromAddress)
	assert.Contains(t, email.Body, "integration test email")

	// Step 6: Clear
	cleared, err := client.ClearAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, cleared.DeletedCount)
}

// TestWorkflow_ErrorRecovery checks that bad files never hide good ones
func TestWorkflow_ErrorRecovery(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "valid.eml"), []byte(sampleEML), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.json"), []byte(`{"subject": "no body"}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte(`{not json`), 0644))

	srv := apitest.NewServer()
	defer srv.Close()
	client := api.NewClient(srv.URL)

	sources, err := importer.SourcesFromDir(dir)
	require.NoError(t, err)

	result, err := importer.New(false).WithConcurrency(1).Run(context.Background(), client, sources, nil)
	require.NoError(t, err, "Failures are reported, not returned")

	assert.Equal(t, 1, result.SuccessCount, "Should keep the valid email")
	assert.Equal(t, 2, result.FailedCount)
	assert.Equal(t, 3, result.TotalCount)
	assert.True(t, result.PartialFailure())

	failures := make(map[string]string)
	for _, f := range result.FailedEmails {
		failures[f.Source()] = f.Error
	}
	assert.Contains(t, failures, "broken.json")
	assert.Equal(t, "body is empty", failures["unknown@email.com"])

	emails, err := client.ListEmails(context.Background(), api.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, emails, 1, "API should contain only the valid email")
}
