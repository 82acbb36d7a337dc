package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"github.com/ayusman/dactilo/internal/logging"
)

// ErrScriptNotFound is returned when the MediaPipe helper script cannot be located.
var ErrScriptNotFound = errors.New("mediapipe_service.py not found")

// idleShutdown is how long the helper process may sit unused before it is stopped.
const idleShutdown = 30 * time.Second

// MediaPipeDetector implements Detector with a Python MediaPipe helper
// process. The helper is started on the first frame, stopped after
// idleShutdown without frames and restarted after a protocol error.
type MediaPipeDetector struct {
	config Config
	python string
	script string
	log    zerolog.Logger

	mu        sync.Mutex
	proc      *helper
	idleTimer *time.Timer
}

// NewMediaPipeDetector locates the helper script and interpreter. No process
// is started until the first Detect.
func NewMediaPipeDetector(config Config) (*MediaPipeDetector, error) {
	script := config.ScriptPath
	if script == "" {
		script = findMediaPipeScript()
	} else if _, err := os.Stat(script); err != nil {
		script = ""
	}
	if script == "" {
		return nil, ErrScriptNotFound
	}

	python := config.Python
	if python == "" {
		python = findVenvPython()
	}
	if python == "" {
		python = "python3"
	}

	return &MediaPipeDetector{
		config: config,
		python: python,
		script: script,
		log:    logging.WithComponent("mediapipe"),
	}, nil
}

// Detect sends frame to the helper and returns at most MaxHands hands.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.proc == nil {
		proc, err := startHelper(d.python, d.script, d.config, d.log)
		if err != nil {
			return nil, err
		}
		d.proc = proc
		d.log.Info().Str("script", d.script).Msg("MediaPipe helper started")
	}

	line, err := d.proc.roundTrip(buf.GetBytes())
	if err != nil {
		d.log.Warn().Err(err).Msg("MediaPipe helper failed, restarting on next frame")
		d.stopLocked()
		return nil, err
	}
	d.resetIdleTimer()

	hands, err := parseResponse(line)
	if err != nil {
		return nil, err
	}
	if d.config.MaxHands > 0 && len(hands) > d.config.MaxHands {
		hands = hands[:d.config.MaxHands]
	}
	return hands, nil
}

// Close stops the helper process.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopLocked()
}

func (d *MediaPipeDetector) stopLocked() error {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}
	if d.proc == nil {
		return nil
	}
	err := d.proc.stop()
	d.proc = nil
	return err
}

func (d *MediaPipeDetector) resetIdleTimer() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(idleShutdown, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.proc != nil {
			d.log.Debug().Msg("Stopping idle MediaPipe helper")
		}
		d.stopLocked()
	})
}

// helper is one running MediaPipe process. Each frame is a 4 byte big-endian
// length and a JPEG on stdin, answered by one JSON line on stdout.
type helper struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
}

func startHelper(python, script string, cfg Config, log zerolog.Logger) (*helper, error) {
	cmd := exec.Command(python, script,
		"--max-hands", strconv.Itoa(cfg.MaxHands),
		"--min-detection-confidence", strconv.FormatFloat(cfg.MinConfidence, 'f', -1, 64),
		"--min-tracking-confidence", strconv.FormatFloat(cfg.MinTrackingConf, 'f', -1, 64),
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start mediapipe helper: %w", err)
	}

	go func() {
		sc := bufio.NewScanner(stderr)
		for sc.Scan() {
			log.Debug().Str("stderr", sc.Text()).Msg("MediaPipe helper output")
		}
	}()

	return &helper{cmd: cmd, stdin: stdin, stdout: bufio.NewReader(stdout)}, nil
}

func (h *helper) roundTrip(jpeg []byte) ([]byte, error) {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(jpeg)))

	if _, err := h.stdin.Write(header[:]); err != nil {
		return nil, fmt.Errorf("write frame header: %w", err)
	}
	if _, err := h.stdin.Write(jpeg); err != nil {
		return nil, fmt.Errorf("write frame: %w", err)
	}

	line, err := h.stdout.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return line, nil
}

// stop closes stdin, which makes the helper exit, and waits for it.
func (h *helper) stop() error {
	h.stdin.Close()
	return h.cmd.Wait()
}

func findMediaPipeScript() string {
	return firstExisting(
		"scripts/mediapipe_service.py",
		"../scripts/mediapipe_service.py",
		filepath.Join(executableDir(), "scripts/mediapipe_service.py"),
		filepath.Join(os.Getenv("HOME"), ".dactilo/scripts/mediapipe_service.py"),
	)
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	return firstExisting(
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(executableDir(), "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".dactilo/venv/bin/python"),
	)
}

func executableDir() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	return filepath.Dir(execPath)
}

// firstExisting returns the absolute form of the first path that exists.
func firstExisting(candidates ...string) string {
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			if abs, err := filepath.Abs(path); err == nil {
				return abs
			}
			return path
		}
	}
	return ""
}

// jsonHand is one hand in a helper response. Z is a pointer so 2D-only
// estimators can be told apart from z == 0.
type jsonHand struct {
	Points     []jsonPoint `json:"points"`
	Handedness string      `json:"handedness"`
	Score      float64     `json:"score"`
}

type jsonPoint struct {
	X float64  `json:"x"`
	Y float64  `json:"y"`
	Z *float64 `json:"z"`
}

func parseResponse(line []byte) ([]HandLandmarks, error) {
	var response struct {
		Hands []jsonHand `json:"hands"`
		Error string     `json:"error"`
	}
	if err := json.Unmarshal(line, &response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if response.Error != "" {
		return nil, fmt.Errorf("mediapipe: %s", response.Error)
	}

	result := make([]HandLandmarks, len(response.Hands))
	for i, h := range response.Hands {
		result[i] = h.toHandLandmarks()
	}
	return result, nil
}

func (h jsonHand) toHandLandmarks() HandLandmarks {
	lm := HandLandmarks{
		Points:     make([]Point3D, len(h.Points)),
		Has3D:      len(h.Points) > 0,
		Handedness: h.Handedness,
		Score:      h.Score,
	}

	for i, p := range h.Points {
		lm.Points[i] = Point3D{X: p.X, Y: p.Y}
		if p.Z == nil {
			lm.Has3D = false
			continue
		}
		lm.Points[i].Z = *p.Z
	}

	return lm
}
