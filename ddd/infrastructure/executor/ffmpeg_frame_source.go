package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"deepfake-service/ddd/domain/gateway"
	"deepfake-service/ddd/domain/port"
	"deepfake-service/ddd/domain/vo"
	"deepfake-service/pkg/config"
	"deepfake-service/pkg/logger"
)

// FFmpegFrameSource 使用本地 ffprobe/ffmpeg 读取元信息和抽帧
type FFmpegFrameSource struct {
	ffmpegPath   string
	ffprobePath  string
	width        int
	height       int
	probeTimeout time.Duration
}

func NewFFmpegFrameSource(cfg config.AnalysisConfig) *FFmpegFrameSource {
	s := &FFmpegFrameSource{
		ffmpegPath:   cfg.FFmpegPath,
		ffprobePath:  cfg.FFprobePath,
		width:        cfg.FrameWidth,
		height:       cfg.FrameHeight,
		probeTimeout: cfg.ProbeTimeout,
	}
	if s.ffmpegPath == "" {
		s.ffmpegPath = "ffmpeg"
	}
	if s.ffprobePath == "" {
		s.ffprobePath = "ffprobe"
	}
	if s.width <= 0 || s.height <= 0 {
		s.width, s.height = 224, 224
	}
	if s.probeTimeout <= 0 {
		s.probeTimeout = 30 * time.Second
	}
	return s
}

// GetVideoInfo 调用 ffprobe 读取第一个视频流的信息
func (s *FFmpegFrameSource) GetVideoInfo(ctx context.Context, path string) (vo.VideoMetadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		return vo.VideoMetadata{}, fmt.Errorf("%w: %v", gateway.ErrUnreadableVideo, err)
	}

	probeCtx, cancel := context.WithTimeout(ctx, s.probeTimeout)
	defer cancel()
	cmd := exec.CommandContext(probeCtx, s.ffprobePath,
		"-v", "error",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		path,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return vo.VideoMetadata{}, fmt.Errorf("%w: ffprobe: %v %s", gateway.ErrUnreadableVideo, err, strings.TrimSpace(stderr.String()))
	}

	meta, err := parseProbeOutput(out)
	if err != nil {
		return vo.VideoMetadata{}, fmt.Errorf("%w: %v", gateway.ErrUnreadableVideo, err)
	}
	meta.SizeBytes = info.Size()
	return meta, nil
}

// SampleFrames 单次 ffmpeg 调用按固定步长选帧，以 rgb24 原始帧输出到 stdout
func (s *FFmpegFrameSource) SampleFrames(ctx context.Context, path string, meta vo.VideoMetadata, maxFrames int, progress port.ProgressCallback) ([]gateway.SampledFrame, error) {
	indices := vo.SampleIndices(meta.FrameCount, maxFrames)
	if len(indices) == 0 {
		emit(progress, 100)
		return nil, nil
	}

	// showinfo 在 info 级别输出每个选中帧的 pts_time
	args := []string{
		"-hide_banner",
		"-nostdin",
		"-nostats",
		"-loglevel", "info",
		"-i", path,
		"-an",
		"-vf", buildSelectFilter(vo.SampleStride(meta.FrameCount, maxFrames), indices[len(indices)-1]+1, s.width, s.height),
		"-fps_mode", "passthrough",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"pipe:1",
	}
	cmd := exec.CommandContext(ctx, s.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start ffmpeg: %v", gateway.ErrUnreadableVideo, err)
	}

	frames, readErr := readRawFrames(stdout, s.width, s.height, indices, meta, progress)
	if readErr != nil {
		// 让 ffmpeg 退出，不再阻塞在写管道上
		_, _ = io.Copy(io.Discard, stdout)
	}
	if readErr == nil {
		_, _ = io.Copy(io.Discard, stdout)
	}
	waitErr := cmd.Wait()
	ptsTimes, diagnostics := splitShowinfo(stderr.String())
	remapFrames(frames, ptsTimes, meta)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if len(frames) == 0 && (waitErr != nil || readErr != nil) {
		cause := waitErr
		if cause == nil {
			cause = readErr
		}
		return nil, fmt.Errorf("%w: ffmpeg: %v %s", gateway.ErrUnreadableVideo, cause, tail(diagnostics, 20))
	}
	if waitErr != nil || readErr != nil {
		logger.Warnf("ffmpeg finished with errors, keeping decoded frames path=%s frames=%d expected=%d error=%v",
			path, len(frames), len(indices), errors.Join(waitErr, readErr))
	}

	emit(progress, 100)
	return frames, nil
}

// buildSelectFilter 选出 n%stride==0 且 n<limit 的帧，记录时间戳后缩放
func buildSelectFilter(stride, limit, width, height int) string {
	return fmt.Sprintf(`select=not(mod(n\,%d))*lt(n\,%d),showinfo,scale=%d:%d`, stride, limit, width, height)
}

var showinfoPTS = regexp.MustCompile(`\bn:\s*\d+\s+pts:\s*\S+\s+pts_time:\s*(\S+)`)

// splitShowinfo 从 stderr 中取出 showinfo 的 pts_time 序列，其余行原样返回用于报错。
// 无法解析的 pts_time 记为 NaN，保持与输出帧一一对应。
func splitShowinfo(stderr string) ([]float64, string) {
	var (
		pts   []float64
		other []string
	)
	for _, line := range strings.Split(stderr, "\n") {
		if !strings.Contains(line, "showinfo") {
			if strings.TrimSpace(line) != "" {
				other = append(other, line)
			}
			continue
		}
		m := showinfoPTS.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		t, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			t = math.NaN()
		}
		pts = append(pts, t)
	}
	return pts, strings.Join(other, "\n")
}

// remapFrames 用 pts_time 把输出帧对应回原视频的帧号，缺少 pts 信息时保留按位置得到的结果。
// 帧号严格递增。
func remapFrames(frames []gateway.SampledFrame, ptsTimes []float64, meta vo.VideoMetadata) {
	if meta.FPS <= 0 || len(ptsTimes) < len(frames) {
		return
	}
	prev := -1
	for k := range frames {
		idx := frames[k].Index
		if t := ptsTimes[k]; !math.IsNaN(t) && !math.IsInf(t, 0) {
			idx = int(math.Round((t - meta.StartTimeSeconds) * meta.FPS))
		}
		if idx <= prev {
			idx = prev + 1
		}
		frames[k].Index = idx
		frames[k].TimestampSeconds = meta.TimestampOf(idx)
		prev = idx
	}
}

// readRawFrames 按帧大小切分 rgb24 数据流，先按位置把第 k 帧对应到 indices[k]
func readRawFrames(r io.Reader, width, height int, indices []int, meta vo.VideoMetadata, progress port.ProgressCallback) ([]gateway.SampledFrame, error) {
	frameSize := width * height * 3
	buf := make([]byte, frameSize)
	frames := make([]gateway.SampledFrame, 0, len(indices))
	lastPct := -1

	for len(frames) < len(indices) {
		if _, err := io.ReadFull(r, buf); err != nil {
			if errors.Is(err, io.EOF) {
				return frames, nil
			}
			return frames, fmt.Errorf("read frame %d: %w", len(frames), err)
		}
		idx := indices[len(frames)]
		frames = append(frames, gateway.SampledFrame{
			Frame:            rgb24ToImage(buf, width, height),
			Index:            idx,
			TimestampSeconds: meta.TimestampOf(idx),
		})
		if pct := len(frames) * 100 / len(indices); pct != lastPct {
			lastPct = pct
			emit(progress, pct)
		}
	}
	return frames, nil
}

func rgb24ToImage(buf []byte, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i, j := 0, 0; i+2 < len(buf) && j+3 < len(img.Pix); i, j = i+3, j+4 {
		img.Pix[j] = buf[i]
		img.Pix[j+1] = buf[i+1]
		img.Pix[j+2] = buf[i+2]
		img.Pix[j+3] = 0xff
	}
	return img
}

type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  struct {
		Duration  string `json:"duration"`
		StartTime string `json:"start_time"`
	} `json:"format"`
}

type probeStream struct {
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	AvgFrameRate string `json:"avg_frame_rate"`
	RFrameRate   string `json:"r_frame_rate"`
	NbFrames     string `json:"nb_frames"`
	Duration     string `json:"duration"`
	StartTime    string `json:"start_time"`
}

// parseProbeOutput 解析 ffprobe JSON；容器没有 nb_frames 时用 时长*帧率 估算
func parseProbeOutput(data []byte) (vo.VideoMetadata, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return vo.VideoMetadata{}, fmt.Errorf("parse ffprobe output: %w", err)
	}

	var stream *probeStream
	for i := range out.Streams {
		if out.Streams[i].CodecType == "video" {
			stream = &out.Streams[i]
			break
		}
	}
	if stream == nil {
		return vo.VideoMetadata{}, errors.New("no video stream")
	}

	fps := parseFrameRate(stream.AvgFrameRate)
	if fps <= 0 {
		fps = parseFrameRate(stream.RFrameRate)
	}
	duration := parseFloat(stream.Duration)
	if duration <= 0 {
		duration = parseFloat(out.Format.Duration)
	}
	frameCount, _ := strconv.Atoi(strings.TrimSpace(stream.NbFrames))
	if frameCount <= 0 && fps > 0 && duration > 0 {
		frameCount = int(math.Round(duration * fps))
	}

	startTime := parseFloat(stream.StartTime)
	if stream.StartTime == "" {
		startTime = parseFloat(out.Format.StartTime)
	}

	return vo.VideoMetadata{
		DurationSeconds:  duration,
		FPS:              fps,
		Width:            stream.Width,
		Height:           stream.Height,
		FrameCount:       frameCount,
		StartTimeSeconds: startTime,
	}, nil
}

// parseFrameRate 解析 "30000/1001" 或 "25" 形式的帧率
func parseFrameRate(v string) float64 {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	num, den, found := strings.Cut(v, "/")
	if !found {
		return parseFloat(v)
	}
	n, d := parseFloat(num), parseFloat(den)
	if d == 0 {
		return 0
	}
	return n / d
}

func parseFloat(v string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func emit(cb port.ProgressCallback, pct int) {
	if cb != nil {
		cb(pct)
	}
}

func tail(s string, lines int) string {
	parts := strings.Split(strings.TrimSpace(s), "\n")
	if len(parts) > lines {
		parts = parts[len(parts)-lines:]
	}
	return strings.Join(parts, "\n")
}
