package model

import (
	"fmt"
	"strings"
)

type AlgorithmKind int

const (
	AlgorithmUnknown AlgorithmKind = iota
	HaarCascade
	YoloV3
	YoloV4
	YoloV5
	SSDMobileNet
	SSDResNet
	RetinaNet
	MTCNN
	LFFD
	YoloFace
	SCRFD
)

var algorithmNames = map[AlgorithmKind]string{
	HaarCascade:  "Haar Cascade",
	YoloV3:       "YOLO v3",
	YoloV4:       "YOLO v4",
	YoloV5:       "YOLO v5",
	SSDMobileNet: "SSD MobileNet",
	SSDResNet:    "SSD ResNet",
	RetinaNet:    "RetinaNet",
	MTCNN:        "MTCNN",
	LFFD:         "LFFD",
	YoloFace:     "YOLO-Face",
	SCRFD:        "SCRFD",
}

var algorithmKeys = map[AlgorithmKind]string{
	HaarCascade:  "haar",
	YoloV3:       "yolov3",
	YoloV4:       "yolov4",
	YoloV5:       "yolov5",
	SSDMobileNet: "ssd-mobilenet",
	SSDResNet:    "ssd-resnet",
	RetinaNet:    "retinanet",
	MTCNN:        "mtcnn",
	LFFD:         "lffd",
	YoloFace:     "yolo-face",
	SCRFD:        "scrfd",
}

// String returns the human readable name.
func (k AlgorithmKind) String() string {
	if name, ok := algorithmNames[k]; ok {
		return name
	}
	return "Unknown"
}

// Key returns the short machine name used in configuration and URLs.
func (k AlgorithmKind) Key() string {
	if key, ok := algorithmKeys[k]; ok {
		return key
	}
	return "unknown"
}

func (k AlgorithmKind) MarshalText() ([]byte, error) {
	return []byte(k.Key()), nil
}

func (k *AlgorithmKind) UnmarshalText(b []byte) error {
	if s := string(b); s == "" || s == "unknown" {
		*k = AlgorithmUnknown
		return nil
	}
	kind, ok := ParseAlgorithm(string(b))
	if !ok {
		return fmt.Errorf("unknown algorithm %q", string(b))
	}
	*k = kind
	return nil
}

// ParseAlgorithm maps a loosely written algorithm name ("YOLO v5", "yolov5",
// "ssd_resnet", ...) to its kind.
func ParseAlgorithm(name string) (AlgorithmKind, bool) {
	lower := strings.ToLower(strings.TrimSpace(name))
	if lower == "" {
		return AlgorithmUnknown, false
	}

	for kind, key := range algorithmKeys {
		if lower == key {
			return kind, true
		}
	}

	switch {
	case strings.Contains(lower, "yolo"):
		switch {
		case strings.Contains(lower, "v3"):
			return YoloV3, true
		case strings.Contains(lower, "v4"):
			return YoloV4, true
		case strings.Contains(lower, "v5"):
			return YoloV5, true
		case strings.Contains(lower, "face"):
			return YoloFace, true
		}
		return YoloV5, true
	case strings.Contains(lower, "ssd"):
		if strings.Contains(lower, "resnet") {
			return SSDResNet, true
		}
		return SSDMobileNet, true
	case strings.Contains(lower, "retinanet"):
		return RetinaNet, true
	case strings.Contains(lower, "mtcnn"):
		return MTCNN, true
	case strings.Contains(lower, "lffd"):
		return LFFD, true
	case strings.Contains(lower, "scrfd"):
		return SCRFD, true
	case strings.Contains(lower, "haar"), strings.Contains(lower, "cascade"):
		return HaarCascade, true
	}

	return AlgorithmUnknown, false
}

// Family groups algorithms that share an output layout and decoder.
type Family int

const (
	FamilyUnknown Family = iota
	FamilyCascade
	FamilyYOLO
	FamilySSD
	FamilyRetinaNet
	FamilyMTCNN
	FamilyLFFD
)

func (f Family) String() string {
	switch f {
	case FamilyCascade:
		return "cascade"
	case FamilyYOLO:
		return "yolo"
	case FamilySSD:
		return "ssd"
	case FamilyRetinaNet:
		return "retinanet"
	case FamilyMTCNN:
		return "mtcnn"
	case FamilyLFFD:
		return "lffd"
	default:
		return "unknown"
	}
}

func (k AlgorithmKind) Family() Family {
	switch k {
	case HaarCascade:
		return FamilyCascade
	case YoloV3, YoloV4, YoloV5, YoloFace:
		return FamilyYOLO
	case SSDMobileNet, SSDResNet:
		return FamilySSD
	case RetinaNet:
		return FamilyRetinaNet
	case MTCNN:
		return FamilyMTCNN
	case LFFD:
		return FamilyLFFD
	default:
		return FamilyUnknown
	}
}

type Thresholds struct {
	Confidence float32 `json:"confidence" yaml:"confidence"`
	NMS        float32 `json:"nms" yaml:"nms"`
}

// Layout locates the fields of one raw output row. Negative indexes mean
// "not present".
type Layout struct {
	BoxIndex        int `json:"boxIndex" yaml:"boxIndex"`
	ConfidenceIndex int `json:"confidenceIndex" yaml:"confidenceIndex"`
	// ScoreIndex is the first class score column (YOLO).
	ScoreIndex int `json:"scoreIndex" yaml:"scoreIndex"`
}

type CascadeParams struct {
	ScaleFactor  float64 `json:"scaleFactor" yaml:"scaleFactor"`
	MinNeighbors int     `json:"minNeighbors" yaml:"minNeighbors"`
	MinSize      int     `json:"minSize" yaml:"minSize"`
	MaxSize      int     `json:"maxSize" yaml:"maxSize"`
}

// AlgorithmProfile is the static description of one algorithm. Ratings are
// ordinal 1-5, 5 being best.
type AlgorithmProfile struct {
	Kind           AlgorithmKind `json:"kind"`
	Name           string        `json:"name"`
	Description    string        `json:"description"`
	SpeedRating    int           `json:"speedRating"`
	AccuracyRating int           `json:"accuracyRating"`
	MemoryRating   int           `json:"memoryRating"`
	MinMemoryMB    int           `json:"minMemoryMb"`
	RequiresGPU    bool          `json:"requiresGpu"`
	SupportsBatch  bool          `json:"supportsBatch"`
	UseCases       []string      `json:"useCases,omitempty"`

	// InputSize is the network input resolution; zero keeps the source size.
	InputSize  Size       `json:"inputSize"`
	Mean       [3]float32 `json:"mean"`
	Scale      float32    `json:"scale"`
	SwapRB     bool       `json:"swapRB"`
	Thresholds Thresholds `json:"thresholds"`
	Layout     Layout     `json:"layout"`

	MinFaceSize int           `json:"minFaceSize,omitempty"`
	Cascade     CascadeParams `json:"cascade,omitempty"`

	ModelFile  string `json:"modelFile"`
	ConfigFile string `json:"configFile,omitempty"`
}

// Empty reports whether p is the zero profile returned for unknown kinds.
func (p AlgorithmProfile) Empty() bool {
	return p.Kind == AlgorithmUnknown && p.Name == ""
}

// Clone returns a deep copy so callers cannot alias catalog state.
func (p AlgorithmProfile) Clone() AlgorithmProfile {
	if p.UseCases != nil {
		p.UseCases = append([]string(nil), p.UseCases...)
	}
	return p
}
