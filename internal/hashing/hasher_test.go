package hashing

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/quantarax/filehash/internal/chunker"
	"github.com/quantarax/filehash/internal/observability"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	return path
}

func patterned(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte((i*31 + i/7) % 256)
	}
	return data
}

func TestKnownVectors_ABC(t *testing.T) {
	path := writeFile(t, "abc.txt", []byte("abc"))

	got, err := ComputeHash(path)
	if err != nil {
		t.Fatalf("ComputeHash failed: %v", err)
	}
	if got != "900150983CD24FB0D6963F7D28E17F72" {
		t.Errorf("ComputeHash = %s", got)
	}

	got, err = ComputeHashCompact(path)
	if err != nil {
		t.Fatalf("ComputeHashCompact failed: %v", err)
	}
	if got != "qZk+NkcGgWq6PiVxeFDCbJzQ2J0=" {
		t.Errorf("ComputeHashCompact = %s", got)
	}

	got, err = ComputeMD5Hex(path)
	if err != nil {
		t.Fatalf("ComputeMD5Hex failed: %v", err)
	}
	if got != "900150983cd24fb0d6963f7d28e17f72" {
		t.Errorf("ComputeMD5Hex = %s", got)
	}

	got, err = ComputeHashWith(path, SHA256)
	if err != nil {
		t.Fatalf("ComputeHashWith failed: %v", err)
	}
	if got != "BA7816BF8F01CFEA414140DE5DAE2223B00361A396177A9CB410FF61F20015AD" {
		t.Errorf("ComputeHashWith(SHA256) = %s", got)
	}
}

func TestComputeHash_EmptyFile(t *testing.T) {
	path := writeFile(t, "empty.bin", nil)

	got, err := ComputeHash(path)
	if err != nil {
		t.Fatalf("ComputeHash failed: %v", err)
	}
	if got != "D41D8CD98F00B204E9800998ECF8427E" {
		t.Errorf("ComputeHash(empty) = %s", got)
	}

	d, err := New().DigestFile(context.Background(), path, SHA1)
	if err != nil {
		t.Fatalf("DigestFile failed: %v", err)
	}
	if d.Size != 0 || d.Chunks != 0 {
		t.Errorf("Expected no bytes and no chunks, got %d bytes in %d chunks", d.Size, d.Chunks)
	}
	if len(d.Sum) != SHA1.Size() {
		t.Errorf("Expected %d byte digest, got %d", SHA1.Size(), len(d.Sum))
	}
}

func TestChunkSizeDoesNotChangeDigest(t *testing.T) {
	data := patterned(5000)
	path := writeFile(t, "data.bin", data)

	for _, alg := range Algorithms() {
		ref, _ := alg.New()
		ref.Write(data)
		want := HexLower.Encode(ref.Sum(nil))

		for _, size := range []int{1, 2, 3, 7, 64, 1000, 4096, 4999, 5000, 5001, 0} {
			got, err := ComputeHashStreamed(path, alg, HexLower, size)
			if err != nil {
				t.Fatalf("%v chunk %d: %v", alg, size, err)
			}
			if got != want {
				t.Errorf("%v chunk size %d: got %s, want %s", alg, size, got, want)
			}
		}
	}
}

func TestDigestFile_ChunkAccounting(t *testing.T) {
	path := writeFile(t, "data.bin", patterned(2500))

	d, err := New(WithChunkSize(1000)).DigestFile(context.Background(), path, BLAKE3)
	if err != nil {
		t.Fatalf("DigestFile failed: %v", err)
	}
	if d.Size != 2500 {
		t.Errorf("Expected 2500 bytes, got %d", d.Size)
	}
	if d.Chunks != 3 {
		t.Errorf("Expected 3 chunks, got %d", d.Chunks)
	}
	if d.Algorithm != BLAKE3 {
		t.Errorf("Expected BLAKE3, got %v", d.Algorithm)
	}
}

func TestComputeHash_Deterministic(t *testing.T) {
	path := writeFile(t, "same.bin", patterned(777))

	first, err := ComputeHashWith(path, SHA512)
	if err != nil {
		t.Fatalf("ComputeHashWith failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		again, err := ComputeHashWith(path, SHA512)
		if err != nil {
			t.Fatalf("ComputeHashWith failed: %v", err)
		}
		if again != first {
			t.Fatalf("Digest changed between calls: %s vs %s", first, again)
		}
	}
}

func TestSingleByteChangeChangesDigest(t *testing.T) {
	data := patterned(4096)
	base := writeFile(t, "base.bin", data)
	want, err := ComputeHashWith(base, SHA256)
	if err != nil {
		t.Fatalf("ComputeHashWith failed: %v", err)
	}

	for _, pos := range []int{0, 1, 1023, 2048, 4095} {
		mutated := bytes.Clone(data)
		mutated[pos] ^= 0x01
		path := writeFile(t, "mutated.bin", mutated)
		got, err := ComputeHashWith(path, SHA256)
		if err != nil {
			t.Fatalf("ComputeHashWith failed: %v", err)
		}
		if got == want {
			t.Errorf("Flipping byte %d did not change the digest", pos)
		}
	}
}

func TestUnsupportedAlgorithm_NoFileAccess(t *testing.T) {
	// The path does not exist: an unsupported algorithm must be reported first.
	_, err := ComputeHashWith("/nonexistent/file.bin", Algorithm(42))
	if !errors.Is(err, ErrUnsupportedAlgorithm) {
		t.Fatalf("Expected ErrUnsupportedAlgorithm, got %v", err)
	}
	if errors.Is(err, ErrFileAccess) {
		t.Error("Unsupported algorithm must not touch the file")
	}
}

func TestFileAccessErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		path string
		op   string
	}{
		{"missing", filepath.Join(dir, "missing.bin"), "open"},
		{"directory", dir, "open"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputeHash(tt.path)
			if !errors.Is(err, ErrFileAccess) {
				t.Fatalf("Expected ErrFileAccess, got %v", err)
			}
			var ferr *FileAccessError
			if !errors.As(err, &ferr) {
				t.Fatalf("Expected *FileAccessError, got %T", err)
			}
			if ferr.Path != tt.path || ferr.Op != tt.op {
				t.Errorf("Expected %s on %s, got %s on %s", tt.op, tt.path, ferr.Op, ferr.Path)
			}
		})
	}

	_, err := ComputeHash(filepath.Join(dir, "missing.bin"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected FileAccessError to unwrap to os.ErrNotExist, got %v", err)
	}
}

func TestFileAccessError_Unreadable(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}
	path := writeFile(t, "locked.bin", []byte("secret"))
	if err := os.Chmod(path, 0); err != nil {
		t.Fatalf("Chmod failed: %v", err)
	}
	if _, err := ComputeHash(path); !errors.Is(err, ErrFileAccess) {
		t.Errorf("Expected ErrFileAccess, got %v", err)
	}
}

func TestDigestFile_ReleasesHandles(t *testing.T) {
	if _, err := os.ReadDir("/proc/self/fd"); err != nil {
		t.Skip("no /proc/self/fd")
	}
	countFDs := func() int {
		entries, _ := os.ReadDir("/proc/self/fd")
		return len(entries)
	}

	dir := t.TempDir()
	path := writeFile(t, "data.bin", patterned(100))
	before := countFDs()

	for i := 0; i < 20; i++ {
		ComputeHash(path)
		ComputeHash(dir)
		ComputeHash(filepath.Join(dir, "missing"))
	}

	if after := countFDs(); after > before {
		t.Errorf("Open file descriptors grew from %d to %d", before, after)
	}
}

func TestHashReader_MidStreamFailure(t *testing.T) {
	boom := errors.New("device gone")
	r := io.MultiReader(bytes.NewReader(patterned(300)), iotest.ErrReader(boom))

	_, err := New(WithChunkSize(100)).HashReader(context.Background(), r, MD5)
	if !errors.Is(err, boom) {
		t.Errorf("Expected read error, got %v", err)
	}
}

func TestHashReader_MatchesOneShot(t *testing.T) {
	data := patterned(10000)
	d, err := New(WithChunkSize(333)).HashReader(context.Background(), iotest.HalfReader(bytes.NewReader(data)), SHA3_256)
	if err != nil {
		t.Fatalf("HashReader failed: %v", err)
	}
	ref, _ := SHA3_256.New()
	ref.Write(data)
	if !bytes.Equal(d.Sum, ref.Sum(nil)) {
		t.Error("Chunked digest differs from one-shot digest")
	}
}

func TestDigestFile_ContextCancelled(t *testing.T) {
	path := writeFile(t, "data.bin", patterned(1000))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().DigestFile(ctx, path, MD5)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if errors.Is(err, ErrFileAccess) {
		t.Error("Cancellation must not be reported as a file access error")
	}
	if !strings.Contains(err.Error(), path) {
		t.Errorf("Expected error to name the path, got %v", err)
	}
}

func TestDigestFile_RateLimited(t *testing.T) {
	data := patterned(4096)
	path := writeFile(t, "data.bin", data)

	h := New(WithChunkSize(512), WithRateLimit(1<<30))
	got, err := h.HashFile(context.Background(), path, MD5, HexLower)
	if err != nil {
		t.Fatalf("HashFile failed: %v", err)
	}
	want, _ := ComputeMD5Hex(path)
	if got != want {
		t.Errorf("Rate limited digest %s differs from %s", got, want)
	}
}

func TestDigestFile_RecordsMetrics(t *testing.T) {
	m := observability.NewMetrics()
	h := New(WithMetrics(m), WithChunkSize(10))
	path := writeFile(t, "data.bin", patterned(25))

	if _, err := h.DigestFile(context.Background(), path, SHA1); err != nil {
		t.Fatalf("DigestFile failed: %v", err)
	}
	h.DigestFile(context.Background(), filepath.Join(t.TempDir(), "missing"), SHA1)

	if got := testutil.ToFloat64(m.OperationsTotal.WithLabelValues("SHA-1", "success")); got != 1 {
		t.Errorf("Expected 1 success, got %v", got)
	}
	if got := testutil.ToFloat64(m.OperationsTotal.WithLabelValues("SHA-1", "failure")); got != 1 {
		t.Errorf("Expected 1 failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.BytesTotal.WithLabelValues("SHA-1")); got != 25 {
		t.Errorf("Expected 25 bytes, got %v", got)
	}
	if got := testutil.ToFloat64(m.ChunksTotal); got != 3 {
		t.Errorf("Expected 3 chunks, got %v", got)
	}
}

func TestDigestFile_Logs(t *testing.T) {
	var buf bytes.Buffer
	h := New(WithLogger(observability.NewLogger("filehash", "test", &buf)))
	path := writeFile(t, "data.bin", []byte("abc"))

	if _, err := h.DigestFile(context.Background(), path, MD5); err != nil {
		t.Fatalf("DigestFile failed: %v", err)
	}
	if !strings.Contains(buf.String(), `"message":"hash completed"`) {
		t.Errorf("Expected completion log, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), `"file_path":"`+path+`"`) || !strings.Contains(buf.String(), `"algorithm":"MD5"`) {
		t.Errorf("Expected file and algorithm context, got %q", buf.String())
	}
}

func TestWithChunkSize_Default(t *testing.T) {
	if got := New(WithChunkSize(-5)).ChunkSize(); got != DefaultChunkSize {
		t.Errorf("Expected default chunk size %d, got %d", DefaultChunkSize, got)
	}
	if DefaultChunkSize != 64<<10 {
		t.Errorf("Expected 64 KiB default, got %d", DefaultChunkSize)
	}
	if got := New(WithChunkSize(math.MaxInt)).ChunkSize(); got != chunker.MaxSize {
		t.Errorf("Expected oversized chunk size to clamp to %d, got %d", chunker.MaxSize, got)
	}
}

func TestDerive(t *testing.T) {
	metrics := observability.NewMetrics()
	base := New(WithChunkSize(16), WithMetrics(metrics))
	derived := base.Derive(WithChunkSize(4))

	if base.ChunkSize() != 16 || derived.ChunkSize() != 4 {
		t.Fatalf("Expected 16/4, got %d/%d", base.ChunkSize(), derived.ChunkSize())
	}
	path := writeFile(t, "data.bin", patterned(10))
	if _, err := derived.DigestFile(context.Background(), path, SHA1); err != nil {
		t.Fatalf("DigestFile failed: %v", err)
	}
	if got := testutil.ToFloat64(metrics.ChunksTotal); got != 3 {
		t.Errorf("Expected derived hasher to share metrics, got %v chunks", got)
	}
}

func TestWalkFile(t *testing.T) {
	data := patterned(2500)
	path := writeFile(t, "data.bin", data)
	h := New(WithChunkSize(1000))

	var offsets []int64
	var joined []byte
	d, err := h.WalkFile(context.Background(), path, SHA256, func(index int, offset int64, chunk []byte) error {
		if index != len(offsets) {
			t.Errorf("Expected index %d, got %d", len(offsets), index)
		}
		offsets = append(offsets, offset)
		joined = append(joined, chunk...)
		return nil
	})
	if err != nil {
		t.Fatalf("WalkFile failed: %v", err)
	}
	if len(offsets) != 3 || offsets[0] != 0 || offsets[1] != 1000 || offsets[2] != 2000 {
		t.Errorf("Unexpected offsets %v", offsets)
	}
	if !bytes.Equal(joined, data) {
		t.Error("Chunks do not reassemble the file")
	}
	want, err := h.DigestFile(context.Background(), path, SHA256)
	if err != nil {
		t.Fatalf("DigestFile failed: %v", err)
	}
	if !bytes.Equal(d.Sum, want.Sum) || d.Size != 2500 || d.Chunks != 3 {
		t.Errorf("WalkFile digest %+v differs from DigestFile %+v", d, want)
	}
}

func TestWalkFile_CallbackError(t *testing.T) {
	path := writeFile(t, "data.bin", patterned(4096))
	stop := errors.New("stop")

	calls := 0
	_, err := New(WithChunkSize(1024)).WalkFile(context.Background(), path, MD5, func(int, int64, []byte) error {
		calls++
		if calls == 2 {
			return stop
		}
		return nil
	})
	if err != stop {
		t.Errorf("Expected callback error unchanged, got %v", err)
	}
	if errors.Is(err, ErrFileAccess) {
		t.Error("Callback error must not be reported as a file access error")
	}
	if calls != 2 {
		t.Errorf("Expected hashing to stop after 2 chunks, got %d", calls)
	}
}

func TestDigest_Encode(t *testing.T) {
	d := Digest{Algorithm: SHA1, Sum: []byte{0xab, 0xcd, 0xef}}
	if got := d.Encode(HexUpper); got != "ABCDEF" {
		t.Errorf("HexUpper = %s", got)
	}
	if got := d.Encode(HexLower); got != "abcdef" {
		t.Errorf("HexLower = %s", got)
	}
	if got := d.Encode(Base64); got != "q83v" {
		t.Errorf("Base64 = %s", got)
	}
}
