package e2e_test

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// generateNestedJSON creates a deeply nested JSON record for benchmarking
func generateNestedJSON(depth int, width int) map[string]interface{} {
	if depth <= 0 {
		return map[string]interface{}{
			"leaf_value": "data",
			"count":      rand.Intn(100),
			"enabled":    rand.Intn(2) == 1,
		}
	}

	result := make(map[string]interface{})
	for i := 0; i < width; i++ {
		key := fmt.Sprintf("nested_%d_%d", depth, i)
		result[key] = generateNestedJSON(depth-1, width)
	}
	return result
}

// generateWideJSON creates a record with many fields at the same level,
// each record carrying a different subset so the column union keeps growing
func generateWideJSON(fieldCount int, offset int) map[string]interface{} {
	result := make(map[string]interface{})
	for i := 0; i < fieldCount; i++ {
		key := fmt.Sprintf("field_%d", (i+offset)%(fieldCount*2))
		switch i % 4 {
		case 0:
			result[key] = fmt.Sprintf("value_%d", i)
		case 1:
			result[key] = i
		case 2:
			result[key] = float64(i) + 0.5
		default:
			result[key] = []int{i, i + 1}
		}
	}
	return result
}

func writeRecords(b *testing.B, path string, records []map[string]interface{}) {
	b.Helper()
	f, err := os.Create(path)
	require.NoError(b, err)
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, rec := range records {
		require.NoError(b, enc.Encode(rec))
	}
}

func benchCLI(b *testing.B, args ...string) {
	b.Helper()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cmd := exec.Command("go", append([]string{"run", "../../main.go"}, args...)...)
		output, err := cmd.CombinedOutput()
		require.NoError(b, err, "CLI command failed: %s", string(output))
	}
}

// BenchmarkDeepNesting benchmarks performance with deeply nested records
func BenchmarkDeepNesting(b *testing.B) {
	if testing.Short() {
		b.Skip("skipping benchmark in short mode")
	}

	tempDir, err := os.MkdirTemp("", "json2csv-bench-nesting")
	require.NoError(b, err)
	defer os.RemoveAll(tempDir)

	depths := []struct {
		name  string
		depth int
		width int
	}{
		{"Depth3Width3", 3, 3},
		{"Depth5Width2", 5, 2},
		{"Depth2Width10", 2, 10},
	}

	for _, depth := range depths {
		b.Run(depth.name, func(b *testing.B) {
			records := make([]map[string]interface{}, 200)
			for i := range records {
				records[i] = generateNestedJSON(depth.depth, depth.width)
			}
			jsonFile := filepath.Join(tempDir, fmt.Sprintf("%s.jsonl", depth.name))
			writeRecords(b, jsonFile, records)

			benchCLI(b, "-i", jsonFile, "-o", filepath.Join(tempDir, depth.name+".csv"))
		})
	}
}

// BenchmarkWideRecords benchmarks performance with many distinct columns
func BenchmarkWideRecords(b *testing.B) {
	if testing.Short() {
		b.Skip("skipping benchmark in short mode")
	}

	tempDir, err := os.MkdirTemp("", "json2csv-bench-wide")
	require.NoError(b, err)
	defer os.RemoveAll(tempDir)

	for _, fields := range []int{50, 200, 1000} {
		b.Run(fmt.Sprintf("Fields%d", fields), func(b *testing.B) {
			records := make([]map[string]interface{}, 100)
			for i := range records {
				records[i] = generateWideJSON(fields, i*7)
			}
			jsonFile := filepath.Join(tempDir, fmt.Sprintf("wide_%d.jsonl", fields))
			writeRecords(b, jsonFile, records)

			benchCLI(b, "-i", jsonFile, "-o", filepath.Join(tempDir, fmt.Sprintf("wide_%d.csv", fields)))
		})
	}
}

// BenchmarkStrategies compares full-memory and two-pass streaming conversion
func BenchmarkStrategies(b *testing.B) {
	if testing.Short() {
		b.Skip("skipping benchmark in short mode")
	}

	tempDir, err := os.MkdirTemp("", "json2csv-bench-modes")
	require.NoError(b, err)
	defer os.RemoveAll(tempDir)

	jsonFile := filepath.Join(tempDir, "large.jsonl")
	generateLargeJSONL(b, jsonFile, 20000, 42)

	b.Run("FullMemory", func(b *testing.B) {
		benchCLI(b, "-i", jsonFile, "-o", filepath.Join(tempDir, "full.csv"))
	})
	b.Run("Streaming", func(b *testing.B) {
		benchCLI(b, "-i", jsonFile, "-o", filepath.Join(tempDir, "stream.csv"), "--streaming", "--batch-size", "1000")
	})
}
