package vision

import (
	"fmt"
	"math"
	"sort"

	ort "github.com/yalue/onnxruntime_go"
)

// Candidate is a raw detector hit in original-image pixel coordinates.
type Candidate struct {
	BBox  [4]float32 // x1, y1, x2, y2
	Score float32
}

// Detector runs RetinaFace (det_10g) face detection using ONNX Runtime.
// Only the score and bbox heads are bound; the landmark head is left
// unrequested since downstream cropping works from the box alone.
type Detector struct {
	session       *ort.AdvancedSession
	inputTensor   *ort.Tensor[float32]
	outputTensors []*ort.Tensor[float32]
	floor         float32
	inputW        int
	inputH        int
}

// det_10g anchor layout: two anchors per cell at each stride.
var detStrides = []int{8, 16, 32}

const anchorsPerCell = 2

const nmsIOUThreshold = 0.4

// NewDetector loads the RetinaFace ONNX model. Faces scoring strictly
// below floor are discarded at decode time.
func NewDetector(modelPath string, floor float32) (*Detector, error) {
	inputW, inputH := 640, 640

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(inputH), int64(inputW)))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	// det_10g outputs have no batch dimension. Per stride s the anchor
	// count is (640/s)^2 * 2: 12800, 3200, 800.
	outputs := []struct {
		name  string
		shape ort.Shape
	}{
		{"448", ort.NewShape(12800, 1)}, // scores, stride 8
		{"471", ort.NewShape(3200, 1)},  // scores, stride 16
		{"494", ort.NewShape(800, 1)},   // scores, stride 32
		{"451", ort.NewShape(12800, 4)}, // bboxes, stride 8
		{"474", ort.NewShape(3200, 4)},  // bboxes, stride 16
		{"497", ort.NewShape(800, 4)},   // bboxes, stride 32
	}

	outputNames := make([]string, len(outputs))
	outputTensors := make([]*ort.Tensor[float32], len(outputs))
	outputValues := make([]ort.Value, len(outputs))

	for i, spec := range outputs {
		outputNames[i] = spec.name
		t, err := ort.NewEmptyTensor[float32](spec.shape)
		if err != nil {
			for j := 0; j < i; j++ {
				outputTensors[j].Destroy()
			}
			inputTensor.Destroy()
			return nil, fmt.Errorf("create output tensor %s: %w", spec.name, err)
		}
		outputTensors[i] = t
		outputValues[i] = t
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input.1"},
		outputNames,
		[]ort.Value{inputTensor},
		outputValues,
		nil,
	)
	if err != nil {
		inputTensor.Destroy()
		for _, t := range outputTensors {
			t.Destroy()
		}
		return nil, fmt.Errorf("create detector session: %w", err)
	}

	return &Detector{
		session:       session,
		inputTensor:   inputTensor,
		outputTensors: outputTensors,
		floor:         floor,
		inputW:        inputW,
		inputH:        inputH,
	}, nil
}

// Detect runs face detection on a preprocessed image in CHW layout.
// origW/origH scale box coordinates back to the original image.
func (d *Detector) Detect(imgData []float32, origW, origH int) ([]Candidate, error) {
	copy(d.inputTensor.GetData(), imgData)

	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("run detection: %w", err)
	}

	return nms(d.decode(origW, origH), nmsIOUThreshold), nil
}

// decode turns the anchor-relative distance outputs into pixel boxes.
func (d *Detector) decode(origW, origH int) []Candidate {
	scaleW := float32(origW) / float32(d.inputW)
	scaleH := float32(origH) / float32(d.inputH)

	var found []Candidate
	for si, stride := range detStrides {
		scores := d.outputTensors[si].GetData()
		boxes := d.outputTensors[si+3].GetData()

		cells := d.inputW / stride
		st := float32(stride)

		idx := 0
		for cy := 0; cy < cells; cy++ {
			for cx := 0; cx < cells; cx++ {
				for a := 0; a < anchorsPerCell; a++ {
					score := scores[idx]
					if !passesFloor(score, d.floor) {
						idx++
						continue
					}

					ax := float32(cx) * st
					ay := float32(cy) * st

					// Distances from the anchor center to each edge,
					// in stride units.
					x1 := (ax - boxes[idx*4+0]*st) * scaleW
					y1 := (ay - boxes[idx*4+1]*st) * scaleH
					x2 := (ax + boxes[idx*4+2]*st) * scaleW
					y2 := (ay + boxes[idx*4+3]*st) * scaleH

					found = append(found, Candidate{
						BBox: [4]float32{
							clampF(x1, 0, float32(origW)),
							clampF(y1, 0, float32(origH)),
							clampF(x2, 0, float32(origW)),
							clampF(y2, 0, float32(origH)),
						},
						Score: score,
					})
					idx++
				}
			}
		}
	}

	return found
}

// InputSize returns the model's expected input dimensions.
func (d *Detector) InputSize() (int, int) {
	return d.inputW, d.inputH
}

func (d *Detector) Close() {
	if d.session != nil {
		d.session.Destroy()
	}
	if d.inputTensor != nil {
		d.inputTensor.Destroy()
	}
	for _, t := range d.outputTensors {
		if t != nil {
			t.Destroy()
		}
	}
}

// passesFloor keeps a detection at or above the confidence floor; only a
// score strictly below the floor is discarded.
func passesFloor(score, floor float32) bool {
	return score >= floor
}

// nms suppresses overlapping candidates, keeping the highest scored.
func nms(candidates []Candidate, iouThreshold float32) []Candidate {
	if len(candidates) == 0 {
		return candidates
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	suppressed := make([]bool, len(candidates))
	var kept []Candidate
	for i, c := range candidates {
		if suppressed[i] {
			continue
		}
		kept = append(kept, c)
		for j := i + 1; j < len(candidates); j++ {
			if !suppressed[j] && iou(c.BBox, candidates[j].BBox) > iouThreshold {
				suppressed[j] = true
			}
		}
	}
	return kept
}

func iou(a, b [4]float32) float32 {
	ix1 := maxF(a[0], b[0])
	iy1 := maxF(a[1], b[1])
	ix2 := minF(a[2], b[2])
	iy2 := minF(a[3], b[3])

	intersection := maxF(0, ix2-ix1) * maxF(0, iy2-iy1)

	areaA := (a[2] - a[0]) * (a[3] - a[1])
	areaB := (b[2] - b[0]) * (b[3] - b[1])
	union := areaA + areaB - intersection

	if union <= 0 {
		return 0
	}
	return intersection / union
}

func maxF(a, b float32) float32 { return float32(math.Max(float64(a), float64(b))) }
func minF(a, b float32) float32 { return float32(math.Min(float64(a), float64(b))) }

func clampF(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
