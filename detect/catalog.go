package detect

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/khaledhikmat/vs-detect/model"
)

const defaultNMS = 0.4

// Catalog is an immutable set of algorithm profiles. Build one with
// NewCatalog or DefaultCatalog and share it freely; every accessor returns
// copies.
type Catalog struct {
	order    []model.AlgorithmKind
	profiles map[model.AlgorithmKind]model.AlgorithmProfile
}

func NewCatalog(profiles ...model.AlgorithmProfile) *Catalog {
	c := &Catalog{
		profiles: make(map[model.AlgorithmKind]model.AlgorithmProfile, len(profiles)),
	}
	for _, p := range profiles {
		if _, dup := c.profiles[p.Kind]; !dup {
			c.order = append(c.order, p.Kind)
		}
		c.profiles[p.Kind] = p.Clone()
	}
	return c
}

// DefaultCatalog returns the built-in profiles.
func DefaultCatalog() *Catalog {
	return NewCatalog(builtinProfiles()...)
}

// Profile returns the profile for kind, or an empty profile if the kind is
// not in the catalog.
func (c *Catalog) Profile(kind model.AlgorithmKind) model.AlgorithmProfile {
	p, ok := c.profiles[kind]
	if !ok {
		return model.AlgorithmProfile{}
	}
	return p.Clone()
}

func (c *Catalog) Has(kind model.AlgorithmKind) bool {
	_, ok := c.profiles[kind]
	return ok
}

// Kinds returns catalog kinds in insertion order.
func (c *Catalog) Kinds() []model.AlgorithmKind {
	return append([]model.AlgorithmKind(nil), c.order...)
}

func (c *Catalog) Profiles() []model.AlgorithmProfile {
	out := make([]model.AlgorithmProfile, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.profiles[k].Clone())
	}
	return out
}

// With returns a new catalog where fn has been applied to a copy of every
// profile. The receiver is not modified.
func (c *Catalog) With(fn func(p *model.AlgorithmProfile)) *Catalog {
	out := make([]model.AlgorithmProfile, 0, len(c.order))
	for _, p := range c.Profiles() {
		fn(&p)
		out = append(out, p)
	}
	return NewCatalog(out...)
}

// RequiredFiles lists the files, relative to the model directory, that a
// profile needs to load.
func RequiredFiles(p model.AlgorithmProfile) []string {
	var files []string
	if p.ModelFile != "" {
		files = append(files, p.ModelFile)
	}
	if p.ConfigFile != "" {
		files = append(files, p.ConfigFile)
	}
	return files
}

// VerifyModelFiles returns the required files that are missing from dir.
func VerifyModelFiles(p model.AlgorithmProfile, dir string) []string {
	var missing []string
	for _, f := range RequiredFiles(p) {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			missing = append(missing, f)
		}
	}
	return missing
}

// BestProfile picks the highest speed (or accuracy) rating, using the other
// rating and then catalog order to break ties.
func BestProfile(profiles []model.AlgorithmProfile, prioritizeSpeed bool) (model.AlgorithmProfile, bool) {
	if len(profiles) == 0 {
		return model.AlgorithmProfile{}, false
	}

	sorted := append([]model.AlgorithmProfile(nil), profiles...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if prioritizeSpeed {
			if a.SpeedRating != b.SpeedRating {
				return a.SpeedRating > b.SpeedRating
			}
			return a.AccuracyRating > b.AccuracyRating
		}
		if a.AccuracyRating != b.AccuracyRating {
			return a.AccuracyRating > b.AccuracyRating
		}
		return a.SpeedRating > b.SpeedRating
	})
	return sorted[0].Clone(), true
}

func builtinProfiles() []model.AlgorithmProfile {
	yolo := func(kind model.AlgorithmKind, desc string, speed, acc, mem, minMB, input int, file, cfg string, uses ...string) model.AlgorithmProfile {
		return model.AlgorithmProfile{
			Kind:           kind,
			Name:           kind.String(),
			Description:    desc,
			SpeedRating:    speed,
			AccuracyRating: acc,
			MemoryRating:   mem,
			MinMemoryMB:    minMB,
			SupportsBatch:  true,
			UseCases:       uses,
			InputSize:      model.Size{Width: input, Height: input},
			Scale:          1.0 / 255.0,
			SwapRB:         true,
			Thresholds:     model.Thresholds{Confidence: 0.5, NMS: defaultNMS},
			Layout:         model.Layout{BoxIndex: 0, ConfidenceIndex: 4, ScoreIndex: 5},
			ModelFile:      file,
			ConfigFile:     cfg,
		}
	}

	ssd := func(kind model.AlgorithmKind, desc string, speed, acc, mem, minMB int, file, cfg string, uses ...string) model.AlgorithmProfile {
		return model.AlgorithmProfile{
			Kind:           kind,
			Name:           kind.String(),
			Description:    desc,
			SpeedRating:    speed,
			AccuracyRating: acc,
			MemoryRating:   mem,
			MinMemoryMB:    minMB,
			SupportsBatch:  true,
			UseCases:       uses,
			InputSize:      model.Size{Width: 300, Height: 300},
			Mean:           [3]float32{104, 177, 123},
			Scale:          1.0,
			Thresholds:     model.Thresholds{Confidence: 0.7, NMS: defaultNMS},
			Layout:         model.Layout{BoxIndex: 1, ConfidenceIndex: 0, ScoreIndex: -1},
			ModelFile:      file,
			ConfigFile:     cfg,
		}
	}

	return []model.AlgorithmProfile{
		{
			Kind:           model.HaarCascade,
			Name:           model.HaarCascade.String(),
			Description:    "Classic sliding-window cascade classifier, fast and light",
			SpeedRating:    3,
			AccuracyRating: 2,
			MemoryRating:   5,
			MinMemoryMB:    50,
			SupportsBatch:  true,
			UseCases:       []string{"embedded", "low-power", "frontal faces"},
			Thresholds:     model.Thresholds{Confidence: 1.0, NMS: defaultNMS},
			Layout:         model.Layout{BoxIndex: 0, ConfidenceIndex: -1, ScoreIndex: -1},
			Cascade:        model.CascadeParams{ScaleFactor: 1.1, MinNeighbors: 3, MinSize: 30, MaxSize: 300},
			ModelFile:      "haarcascade_frontalface_alt.xml",
		},
		yolo(model.YoloV3, "YOLO v3 darknet face detector", 5, 3, 3, 200, 416,
			"yolov3-face.weights", "yolov3-face.cfg", "real-time", "general purpose"),
		yolo(model.YoloV4, "YOLO v4 darknet face detector", 4, 4, 3, 250, 608,
			"yolov4-face.weights", "yolov4-face.cfg", "balanced", "crowds"),
		yolo(model.YoloV5, "YOLO v5 small face detector", 5, 4, 4, 180, 640,
			"yolov5s-face.onnx", "", "real-time", "balanced", "edge"),
		ssd(model.SSDMobileNet, "SSD with MobileNet backbone", 4, 3, 4, 100,
			"ssd_mobilenet_face.pb", "ssd_mobilenet_face.pbtxt", "mobile", "real-time"),
		ssd(model.SSDResNet, "SSD with ResNet-10 backbone", 3, 4, 2, 300,
			"ssd_resnet_face.pb", "", "accuracy", "server"),
		{
			Kind:           model.RetinaNet,
			Name:           model.RetinaNet.String(),
			Description:    "Single-stage dense detector with focal loss",
			SpeedRating:    2,
			AccuracyRating: 5,
			MemoryRating:   2,
			MinMemoryMB:    400,
			RequiresGPU:    true,
			SupportsBatch:  true,
			UseCases:       []string{"high accuracy", "offline analysis"},
			InputSize:      model.Size{Width: 640, Height: 640},
			Mean:           [3]float32{103.94, 116.78, 123.68},
			Scale:          1.0,
			Thresholds:     model.Thresholds{Confidence: 0.7, NMS: defaultNMS},
			Layout:         model.Layout{BoxIndex: 0, ConfidenceIndex: 4, ScoreIndex: -1},
			ModelFile:      "retinanet_face.onnx",
		},
		{
			Kind:           model.MTCNN,
			Name:           model.MTCNN.String(),
			Description:    "Cascaded multi-task network with facial landmarks",
			SpeedRating:    3,
			AccuracyRating: 5,
			MemoryRating:   4,
			MinMemoryMB:    150,
			UseCases:       []string{"landmarks", "alignment", "high accuracy"},
			InputSize:      model.Size{Width: 48, Height: 48},
			Scale:          1.0 / 255.0,
			Thresholds:     model.Thresholds{Confidence: 0.6, NMS: defaultNMS},
			Layout:         model.Layout{BoxIndex: 0, ConfidenceIndex: 4, ScoreIndex: -1},
			MinFaceSize:    20,
			ModelFile:      "mtcnn_face.onnx",
		},
		{
			Kind:           model.LFFD,
			Name:           model.LFFD.String(),
			Description:    "Light and fast anchor-free face detector",
			SpeedRating:    5,
			AccuracyRating: 3,
			MemoryRating:   5,
			MinMemoryMB:    50,
			SupportsBatch:  true,
			UseCases:       []string{"real-time", "edge", "small faces"},
			InputSize:      model.Size{Width: 640, Height: 480},
			Scale:          1.0 / 255.0,
			SwapRB:         true,
			Thresholds:     model.Thresholds{Confidence: 0.7, NMS: defaultNMS},
			Layout:         model.Layout{BoxIndex: 0, ConfidenceIndex: 4, ScoreIndex: -1},
			ModelFile:      "lffd_face.onnx",
		},
		yolo(model.YoloFace, "YOLO tuned for faces", 4, 4, 3, 200, 640,
			"yolo_face.onnx", "", "faces", "balanced"),
	}
}

// ProfileLine renders one profile as a single summary line.
func ProfileLine(p model.AlgorithmProfile) string {
	gpu := "no"
	if p.RequiresGPU {
		gpu = "yes"
	}
	return fmt.Sprintf("%-14s speed=%d accuracy=%d memory=%d min=%dMB gpu=%s",
		p.Name, p.SpeedRating, p.AccuracyRating, p.MemoryRating, p.MinMemoryMB, gpu)
}
