package srtm

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/beetlebugorg/rpcroi/pkg/geo"
)

// Default binary names of the out-of-process oracles.
const (
	DefaultElevationBinary = "srtm4"
	DefaultTileBinary      = "srtm4_which_tile"
)

// CacheEnv is the environment variable through which srtm4 finds its tiles.
const CacheEnv = "SRTM4_CACHE"

// ExecTileLocator asks the srtm4_which_tile binary which tile covers a point.
type ExecTileLocator struct {
	Binary string // Default: DefaultTileBinary
}

// Locate runs `srtm4_which_tile lon lat` and returns the first token of the
// first output line.
func (l *ExecTileLocator) Locate(ctx context.Context, lon, lat float64) (TileID, error) {
	binary := l.Binary
	if binary == "" {
		binary = DefaultTileBinary
	}

	out, err := exec.CommandContext(ctx, binary, formatCoord(lon), formatCoord(lat)).Output()
	if err != nil {
		return "", fmt.Errorf("run %s: %w", binary, err)
	}

	token, err := firstToken(binary, out)
	if err != nil {
		return "", err
	}
	id := TileID(token)
	if _, _, err := id.Parse(); err != nil {
		return "", &ErrOracleOutput{Oracle: binary, Output: token, Reason: "not a tile id"}
	}
	return id, nil
}

// ExecElevationOracle asks the srtm4 binary for point heights.
type ExecElevationOracle struct {
	Binary   string // Default: DefaultElevationBinary
	CacheDir string // Exported to the binary as SRTM4_CACHE when set
	WorkDir  string // Working directory of the binary, optional
}

func (o *ExecElevationOracle) command(ctx context.Context, args ...string) *exec.Cmd {
	binary := o.binary()
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Dir = o.WorkDir
	if o.CacheDir != "" {
		cmd.Env = append(os.Environ(), CacheEnv+"="+o.CacheDir)
	}
	return cmd
}

func (o *ExecElevationOracle) binary() string {
	if o.Binary == "" {
		return DefaultElevationBinary
	}
	return o.Binary
}

// Query runs `srtm4 lon lat`.
func (o *ExecElevationOracle) Query(ctx context.Context, p geo.Point) (geo.Sample, error) {
	out, err := o.command(ctx, formatCoord(p.Lon), formatCoord(p.Lat)).Output()
	if err != nil {
		return geo.NoData, fmt.Errorf("run %s: %w", o.binary(), err)
	}

	token, err := firstToken(o.binary(), out)
	if err != nil {
		return geo.NoData, err
	}
	return parseHeight(o.binary(), token)
}

// QueryBatch runs srtm4 once, writing one "lon lat" line per point on its
// standard input and reading one height line per point back.
func (o *ExecElevationOracle) QueryBatch(ctx context.Context, pts []geo.Point) ([]geo.Sample, error) {
	var in bytes.Buffer
	for _, p := range pts {
		in.WriteString(formatCoord(p.Lon))
		in.WriteByte(' ')
		in.WriteString(formatCoord(p.Lat))
		in.WriteByte('\n')
	}

	cmd := o.command(ctx)
	cmd.Stdin = &in
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", o.binary(), err)
	}

	samples := make([]geo.Sample, 0, len(pts))
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() && len(samples) < len(pts) {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			return nil, &ErrOracleOutput{Oracle: o.binary(), Output: scanner.Text(), Reason: fmt.Sprintf("empty line for point %d", len(samples))}
		}
		s, err := parseHeight(o.binary(), fields[0])
		if err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s output: %w", o.binary(), err)
	}
	if len(samples) != len(pts) {
		return nil, &ErrOracleOutput{
			Oracle: o.binary(),
			Reason: fmt.Sprintf("got %d heights for %d points", len(samples), len(pts)),
		}
	}
	return samples, nil
}

// firstToken returns the first whitespace-separated token of the first line.
func firstToken(oracle string, out []byte) (string, error) {
	line, _, _ := bytes.Cut(out, []byte{'\n'})
	fields := strings.Fields(string(line))
	if len(fields) == 0 {
		return "", &ErrOracleOutput{Oracle: oracle, Output: string(line), Reason: "no token on first line"}
	}
	return fields[0], nil
}

func parseHeight(oracle, token string) (geo.Sample, error) {
	h, err := strconv.ParseFloat(token, 64)
	if err != nil || math.IsInf(h, 0) {
		return geo.NoData, &ErrOracleOutput{Oracle: oracle, Output: token, Reason: "not a number"}
	}
	return sampleFromHeight(h), nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
