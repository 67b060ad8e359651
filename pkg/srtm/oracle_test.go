package srtm

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/beetlebugorg/rpcroi/pkg/geo"
)

// funcOracle answers each point with fn
type funcOracle struct {
	fn    func(p geo.Point) (geo.Sample, error)
	calls int32
}

func (o *funcOracle) Query(_ context.Context, p geo.Point) (geo.Sample, error) {
	atomic.AddInt32(&o.calls, 1)
	return o.fn(p)
}

// batchOracle records whether the batch path was taken
type batchOracle struct {
	funcOracle
	batches int
}

func (o *batchOracle) QueryBatch(ctx context.Context, pts []geo.Point) ([]geo.Sample, error) {
	o.batches++
	out := make([]geo.Sample, len(pts))
	for i, p := range pts {
		out[i], _ = o.fn(p)
	}
	return out, nil
}

func TestQueryBatchPreservesOrder(t *testing.T) {
	pts := make([]geo.Point, 500)
	for i := range pts {
		pts[i] = geo.Point{Lon: float64(i), Lat: 0}
	}

	// Every third point is a void, point 0 is a genuine 0 m reading
	oracle := &funcOracle{fn: func(p geo.Point) (geo.Sample, error) {
		if int(p.Lon)%3 == 1 {
			return geo.NoData, nil
		}
		return geo.Elevation(p.Lon), nil
	}}

	samples, err := QueryBatch(context.Background(), oracle, pts, 7)
	if err != nil {
		t.Fatalf("QueryBatch: %v", err)
	}
	if len(samples) != len(pts) {
		t.Fatalf("got %d samples, want %d", len(samples), len(pts))
	}
	for i, s := range samples {
		if i%3 == 1 {
			if s.Valid {
				t.Fatalf("sample %d should be no data, got %v", i, s)
			}
			continue
		}
		if !s.Valid || s.Value != float64(i) {
			t.Fatalf("sample %d = %v, want %dm", i, s, i)
		}
	}
	if n := atomic.LoadInt32(&oracle.calls); n != int32(len(pts)) {
		t.Errorf("oracle called %d times, want %d", n, len(pts))
	}
}

func TestQueryBatchError(t *testing.T) {
	boom := &ErrOracleOutput{Oracle: "fake", Output: "garbage", Reason: "not a number"}
	oracle := &funcOracle{fn: func(p geo.Point) (geo.Sample, error) {
		if p.Lon == 42 {
			return geo.NoData, boom
		}
		return geo.Elevation(1), nil
	}}

	pts := make([]geo.Point, 100)
	for i := range pts {
		pts[i] = geo.Point{Lon: float64(i)}
	}

	_, err := QueryBatch(context.Background(), oracle, pts, 4)
	var protocol *ErrOracleOutput
	if !errors.As(err, &protocol) {
		t.Fatalf("expected ErrOracleOutput, got %v", err)
	}
}

func TestQueryBatchCancelStopsFeeding(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	oracle := &funcOracle{}
	oracle.fn = func(p geo.Point) (geo.Sample, error) {
		if atomic.LoadInt32(&oracle.calls) >= 10 {
			cancel()
		}
		return geo.Elevation(1), nil
	}

	// Far more points than workers; indices are fed as workers take them
	pts := make([]geo.Point, 1_000_000)
	_, err := QueryBatch(ctx, oracle, pts, 2)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("QueryBatch = %v, want context.Canceled", err)
	}
	if n := atomic.LoadInt32(&oracle.calls); n > 100 {
		t.Errorf("oracle called %d times after cancel, want few", n)
	}
}

func TestQueryBatchDelegatesToBatchOracle(t *testing.T) {
	oracle := &batchOracle{funcOracle: funcOracle{fn: func(p geo.Point) (geo.Sample, error) {
		return geo.Elevation(p.Lat), nil
	}}}

	pts := []geo.Point{{Lat: 3}, {Lat: 1}, {Lat: 2}}
	samples, err := QueryBatch(context.Background(), oracle, pts, 0)
	if err != nil {
		t.Fatalf("QueryBatch: %v", err)
	}
	if oracle.batches != 1 || oracle.calls != 0 {
		t.Errorf("batch path not used: batches=%d single calls=%d", oracle.batches, oracle.calls)
	}
	for i, p := range pts {
		if samples[i].Value != p.Lat {
			t.Errorf("samples[%d] = %v, want %v", i, samples[i], p.Lat)
		}
	}
}

func TestQueryBatchEmpty(t *testing.T) {
	samples, err := QueryBatch(context.Background(), &funcOracle{}, nil, 0)
	if err != nil || len(samples) != 0 {
		t.Errorf("QueryBatch(nil) = %v, %v", samples, err)
	}
}

func TestParseHeight(t *testing.T) {
	tests := []struct {
		token string
		want  geo.Sample
		fail  bool
	}{
		{"123.5", geo.Elevation(123.5), false},
		{"0", geo.Elevation(0), false},
		{"-12", geo.Elevation(-12), false},
		{"nan", geo.NoData, false},
		{"NaN", geo.NoData, false},
		{"inf", geo.NoData, true},
		{"12m", geo.NoData, true},
		{"", geo.NoData, true},
	}

	for _, tt := range tests {
		got, err := parseHeight("srtm4", tt.token)
		if tt.fail {
			var protocol *ErrOracleOutput
			if !errors.As(err, &protocol) {
				t.Errorf("parseHeight(%q) error = %v, want ErrOracleOutput", tt.token, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("parseHeight(%q) = %v, %v, want %v", tt.token, got, err, tt.want)
		}
	}
}

func TestFirstToken(t *testing.T) {
	got, err := firstToken("srtm4_which_tile", []byte("srtm_37_03 extra\nsecond line\n"))
	if err != nil || got != "srtm_37_03" {
		t.Errorf("firstToken = %q, %v", got, err)
	}

	for _, out := range []string{"", "\n", "   \nsrtm_37_03\n"} {
		if _, err := firstToken("srtm4_which_tile", []byte(out)); err == nil {
			t.Errorf("firstToken(%q) should fail", out)
		}
	}
}

// writeScript installs an executable shell script standing in for an oracle binary
func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts unavailable")
	}
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestExecElevationOracle(t *testing.T) {
	// Single queries only answer when SRTM4_CACHE reaches the binary
	script := writeScript(t, "srtm4", `
if [ "$#" -eq 2 ]; then
  if [ "$SRTM4_CACHE" = "/tiles" ]; then echo "$2 ok"; else echo "wrong-cache"; fi
  exit 0
fi
while read lon lat; do
  if [ "$lon" = "0" ]; then echo nan; else echo "$lat"; fi
done
`)
	oracle := &ExecElevationOracle{Binary: script, CacheDir: "/tiles"}
	ctx := context.Background()

	s, err := oracle.Query(ctx, geo.Point{Lon: 2.5, Lat: 48.25})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if s != geo.Elevation(48.25) {
		t.Errorf("Query = %v, want 48.25m", s)
	}

	pts := []geo.Point{{Lon: 1, Lat: 10}, {Lon: 0, Lat: 20}, {Lon: 3, Lat: 0}}
	samples, err := QueryBatch(ctx, oracle, pts, 0)
	if err != nil {
		t.Fatalf("QueryBatch: %v", err)
	}
	want := []geo.Sample{geo.Elevation(10), geo.NoData, geo.Elevation(0)}
	for i := range want {
		if samples[i] != want[i] {
			t.Errorf("samples[%d] = %v, want %v", i, samples[i], want[i])
		}
	}
}

func TestExecElevationOracleMalformed(t *testing.T) {
	script := writeScript(t, "srtm4", "echo 'Segmentation fault'\n")
	oracle := &ExecElevationOracle{Binary: script}

	_, err := oracle.Query(context.Background(), geo.Point{Lon: 1, Lat: 1})
	var protocol *ErrOracleOutput
	if !errors.As(err, &protocol) {
		t.Fatalf("expected ErrOracleOutput, got %v", err)
	}

	// Too few lines for the batch
	short := writeScript(t, "srtm4", "echo 12\n")
	oracle = &ExecElevationOracle{Binary: short}
	_, err = oracle.QueryBatch(context.Background(), []geo.Point{{Lon: 1}, {Lon: 2}})
	if !errors.As(err, &protocol) {
		t.Fatalf("expected ErrOracleOutput for short batch, got %v", err)
	}
}

func TestExecTileLocator(t *testing.T) {
	script := writeScript(t, "srtm4_which_tile", "echo srtm_37_03\n")
	locator := &ExecTileLocator{Binary: script}

	id, err := locator.Locate(context.Background(), 2.35, 48.85)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if id != "srtm_37_03" {
		t.Errorf("Locate = %s, want srtm_37_03", id)
	}

	bad := writeScript(t, "srtm4_which_tile", "echo hello\n")
	locator = &ExecTileLocator{Binary: bad}
	_, err = locator.Locate(context.Background(), 2.35, 48.85)
	var protocol *ErrOracleOutput
	if !errors.As(err, &protocol) {
		t.Fatalf("expected ErrOracleOutput, got %v", err)
	}
}
