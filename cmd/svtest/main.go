// svtest runs the elaborator over a directory of design fixtures and
// compares the produced netlists against golden JSON files. Identical
// fixtures (by content hash) are elaborated only once.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/go-cmp/cmp"
)

type Execution struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exitCode"`
	Duration time.Duration `json:"duration"`
	TimedOut bool          `json:"timed_out"`
}

type FileTestResult struct {
	File    string `json:"file"`
	Status  string `json:"status"` // PASS, FAIL, SKIP, ERROR
	Message string `json:"message,omitempty"`
	Diff    string `json:"diff,omitempty"`
}

var (
	elaborator     = flag.String("elaborator", "./slang", "Path to the elaborator under test.")
	elaboratorArgs = flag.String("elaborator-args", "-q", "Arguments for the elaborator (space-separated).")
	testFiles      = flag.String("test-files", "testdata/*.json", "Glob pattern(s) for design fixtures (space-separated).")
	skipFiles      = flag.String("skip-files", "", "Files to skip (space-separated).")
	generateGolden = flag.Bool("generate-golden", false, "Write golden files from current output instead of comparing.")
	outputJSON     = flag.String("output", ".test_results.json", "Output file for the JSON test report.")
	timeout        = flag.Duration("timeout", 30*time.Second, "Timeout for each elaboration.")
	jobs           = flag.Int("j", 4, "Number of parallel test jobs.")
)

const (
	cRed    = "\x1b[91m"
	cYellow = "\x1b[93m"
	cGreen  = "\x1b[92m"
	cCyan   = "\x1b[96m"
	cBold   = "\x1b[1m"
	cNone   = "\x1b[0m"
)

func main() {
	flag.Parse()
	log.SetFlags(0)

	files, err := expandGlobPatterns(*testFiles)
	if err != nil {
		log.Fatalf("%s[ERROR]%s Invalid glob pattern(s): %v\n", cRed, cNone, err)
	}
	if len(files) == 0 {
		log.Println("No test fixtures found matching the pattern(s).")
		return
	}

	skipList := make(map[string]bool)
	for _, f := range strings.Fields(*skipFiles) {
		abs, err := filepath.Abs(f)
		if err == nil {
			skipList[abs] = true
		}
	}

	tasks := make(chan string, len(files))
	resultsChan := make(chan *FileTestResult, len(files))
	var wg sync.WaitGroup

	for i := 0; i < *jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range tasks {
				resultsChan <- testFile(file)
			}
		}()
	}

	// Feed the task channel, skipping duplicates by content hash.
	seenHashes := make(map[string]string)
	for _, file := range files {
		if skipList[file] {
			resultsChan <- &FileTestResult{File: file, Status: "SKIP", Message: "Explicitly skipped"}
			continue
		}
		hash, err := hashFile(file)
		if err != nil {
			resultsChan <- &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Failed to hash fixture: %v", err)}
			continue
		}
		if original, seen := seenHashes[hash]; seen {
			resultsChan <- &FileTestResult{File: file, Status: "SKIP", Message: fmt.Sprintf("Content is identical to %s", original)}
			continue
		}
		seenHashes[hash] = file
		tasks <- file
	}
	close(tasks)

	wg.Wait()
	close(resultsChan)

	var allResults []*FileTestResult
	for result := range resultsChan {
		allResults = append(allResults, result)
	}
	sort.Slice(allResults, func(i, j int) bool { return allResults[i].File < allResults[j].File })

	printSummary(allResults)
	writeJSONReport(allResults)

	for _, r := range allResults {
		if r.Status == "FAIL" || r.Status == "ERROR" {
			os.Exit(1)
		}
	}
}

// hashFile computes the xxhash of a fixture's content.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum64()), nil
}

func goldenPath(fixture string) string {
	return strings.TrimSuffix(fixture, filepath.Ext(fixture)) + ".golden.json"
}

func testFile(file string) *FileTestResult {
	result := runElaborator(file)
	if result.TimedOut {
		return &FileTestResult{File: file, Status: "ERROR", Message: "Elaboration timed out"}
	}
	if result.ExitCode != 0 {
		return &FileTestResult{
			File:    file,
			Status:  "FAIL",
			Message: fmt.Sprintf("Elaborator exited with code %d", result.ExitCode),
			Diff:    result.Stderr,
		}
	}

	normalized, err := normalizeJSON(result.Stdout)
	if err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Output is not valid JSON: %v", err)}
	}

	golden := goldenPath(file)
	if *generateGolden {
		if err := os.WriteFile(golden, []byte(normalized), 0644); err != nil {
			return &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Failed to write golden file: %v", err)}
		}
		return &FileTestResult{File: file, Status: "PASS", Message: "Golden file written"}
	}

	goldenData, err := os.ReadFile(golden)
	if err != nil {
		return &FileTestResult{File: file, Status: "SKIP", Message: fmt.Sprintf("No golden file at %s", golden)}
	}
	expected, err := normalizeJSON(string(goldenData))
	if err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Golden file is not valid JSON: %v", err)}
	}

	if diff := cmp.Diff(expected, normalized); diff != "" {
		return &FileTestResult{
			File:    file,
			Status:  "FAIL",
			Message: "Netlist mismatch against golden file",
			Diff:    diff,
		}
	}
	return &FileTestResult{File: file, Status: "PASS", Message: "Netlist matches golden file"}
}

func runElaborator(file string) Execution {
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	args := append(strings.Fields(*elaboratorArgs), file)
	cmd := exec.CommandContext(ctx, *elaborator, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	result := Execution{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if ctx.Err() == context.DeadlineExceeded {
		result.TimedOut = true
		result.ExitCode = -1
	} else if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = -2
			result.Stderr += "\nExecution error: " + err.Error()
		}
	}
	return result
}

// normalizeJSON re-marshals with stable indentation so formatting changes
// never fail a comparison.
func normalizeJSON(data string) (string, error) {
	var doc any
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return "", err
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out) + "\n", nil
}

func printSummary(results []*FileTestResult) {
	var passed, failed, skipped, errored int
	for _, result := range results {
		fmt.Println("----------------------------------------------------------------------")
		fmt.Printf("Testing %s%s%s...\n", cCyan, result.File, cNone)
		switch result.Status {
		case "PASS":
			passed++
			fmt.Printf("  [%sPASS%s] %s\n", cGreen, cNone, result.Message)
		case "FAIL":
			failed++
			fmt.Printf("  [%sFAIL%s] %s\n", cRed, cNone, result.Message)
			fmt.Println(formatDiff(result.Diff))
		case "SKIP":
			skipped++
			fmt.Printf("  [%sSKIP%s] %s\n", cYellow, cNone, result.Message)
		case "ERROR":
			errored++
			fmt.Printf("  [%sERROR%s] %s\n", cRed, cNone, result.Message)
		}
	}
	fmt.Println("----------------------------------------------------------------------")
	fmt.Printf("%sTest Summary:%s %s%d Passed%s, %s%d Failed%s, %s%d Skipped%s, %s%d Errored%s, %d Total\n",
		cBold, cNone, cGreen, passed, cNone, cRed, failed, cNone,
		cYellow, skipped, cNone, cRed, errored, cNone, len(results))
}

func formatDiff(diff string) string {
	if diff == "" {
		return ""
	}
	var builder strings.Builder
	builder.WriteString("    --- Diff ---\n")
	for _, line := range strings.Split(diff, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "-") {
			builder.WriteString(cRed)
		} else if strings.HasPrefix(trimmed, "+") {
			builder.WriteString(cGreen)
		}
		builder.WriteString("    " + line)
		builder.WriteString(cNone)
		builder.WriteString("\n")
	}
	return builder.String()
}

func writeJSONReport(results []*FileTestResult) {
	resultsMap := make(map[string]*FileTestResult, len(results))
	for _, r := range results {
		resultsMap[r.File] = r
	}
	jsonData, err := json.MarshalIndent(resultsMap, "", "  ")
	if err != nil {
		log.Printf("%s[ERROR]%s Failed to marshal results to JSON: %v\n", cRed, cNone, err)
		return
	}
	if err := os.WriteFile(*outputJSON, jsonData, 0644); err != nil {
		log.Printf("%s[ERROR]%s Failed to write JSON report to %s: %v\n", cRed, cNone, *outputJSON, err)
		return
	}
	fmt.Printf("Full test report saved to %s\n", *outputJSON)
}

func expandGlobPatterns(patterns string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]bool)
	for _, pattern := range strings.Fields(patterns) {
		files, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %s: %w", pattern, err)
		}
		for _, file := range files {
			if strings.HasSuffix(file, ".golden.json") {
				continue
			}
			absFile, err := filepath.Abs(file)
			if err != nil {
				continue
			}
			if !seen[absFile] {
				if info, err := os.Stat(absFile); err == nil && info.Mode().IsRegular() {
					allFiles = append(allFiles, absFile)
					seen[absFile] = true
				}
			}
		}
	}
	return allFiles, nil
}
