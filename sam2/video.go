package sam2

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sort"

	"github.com/getcharzp/go-annotation"
	"github.com/getcharzp/go-annotation/boxmatch"
	"github.com/sirupsen/logrus"
)

var (
	ErrNoFrames        = errors.New("目录中没有可用的帧图片")
	ErrFrameOutOfRange = errors.New("帧序号越界")
	ErrNotInitialized  = errors.New("视频预测器尚未初始化")
	ErrNoPrompt        = errors.New("尚未在任何帧上添加提示")
)

// objectID 单目标标注时使用的对象 ID
const objectID = 1

// FrameResult 某一帧上单个对象的分割结果
type FrameResult struct {
	FrameIdx int
	ObjectID int
	Result   *Result
}

// VideoPredictor 对帧目录中的目标做分割，后续帧以前一帧 mask 的外接框作为提示
type VideoPredictor struct {
	model Model
	log   logrus.FieldLogger

	dir        string
	frameNames []string

	promptFrame int
	prompt      *Prompt
	segments    map[int]map[int]*Result
}

// NewVideoPredictor 创建视频预测器
func NewVideoPredictor(model Model, log logrus.FieldLogger) *VideoPredictor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &VideoPredictor{model: model, log: log, promptFrame: -1}
}

// InitState 读取帧目录，帧按文件名排序
func (v *VideoPredictor) InitState(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("读取帧目录失败: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || !annotation.IsImageFile(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		return fmt.Errorf("%w: %s", ErrNoFrames, dir)
	}
	sort.Strings(names)

	v.dir = dir
	v.frameNames = names
	v.ResetState()
	v.log.WithFields(logrus.Fields{"dir": dir, "frames": len(names)}).Info("视频帧已加载")
	return nil
}

// ResetState 清除提示和已传播的结果，保留帧列表
func (v *VideoPredictor) ResetState() {
	v.promptFrame = -1
	v.prompt = nil
	v.segments = make(map[int]map[int]*Result)
}

// FrameNames 排序后的帧文件名
func (v *VideoPredictor) FrameNames() []string {
	return append([]string(nil), v.frameNames...)
}

// FramePaths 排序后的帧完整路径
func (v *VideoPredictor) FramePaths() []string {
	paths := make([]string, len(v.frameNames))
	for i, name := range v.frameNames {
		paths[i] = filepath.Join(v.dir, name)
	}
	return paths
}

// PredictItem 在 frameIdx 帧上添加提示并返回该帧的 mask
func (v *VideoPredictor) PredictItem(frameIdx int, opts PredictOptions) (*Result, error) {
	if len(v.frameNames) == 0 {
		return nil, ErrNotInitialized
	}
	if frameIdx < 0 || frameIdx >= len(v.frameNames) {
		return nil, fmt.Errorf("%w: %d (共 %d 帧)", ErrFrameOutOfRange, frameIdx, len(v.frameNames))
	}
	prompt, err := opts.prompt()
	if err != nil {
		return nil, err
	}

	res, err := v.decodeFrame(frameIdx, prompt)
	if err != nil {
		return nil, err
	}
	v.promptFrame = frameIdx
	v.prompt = &prompt
	v.store(frameIdx, res)
	return res, nil
}

// PropagateInVideo 从提示帧开始向后逐帧分割，fn 对每一帧的结果调用一次
//
// 某一帧的 mask 为空时停止传播。
func (v *VideoPredictor) PropagateInVideo(ctx context.Context, fn func(FrameResult) error) error {
	if len(v.frameNames) == 0 {
		return ErrNotInitialized
	}
	if v.prompt == nil {
		return ErrNoPrompt
	}

	prev, ok := v.segments[v.promptFrame][objectID]
	if !ok {
		return ErrNoPrompt
	}
	if err := v.emit(fn, v.promptFrame, prev); err != nil {
		return err
	}

	for idx := v.promptFrame + 1; idx < len(v.frameNames); idx++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		rect, ok := prev.Bounds()
		if !ok {
			v.log.WithField("frame", idx-1).Warn("mask 为空，停止传播")
			return nil
		}
		box := boxmatch.FromRect(rect)
		res, err := v.decodeFrame(idx, Prompt{Box: &box})
		if err != nil {
			return err
		}
		v.store(idx, res)
		if err := v.emit(fn, idx, res); err != nil {
			return err
		}
		prev = res
	}
	return nil
}

// Segments 每一帧各对象的结果，frameIdx -> objectID -> Result
//
// 返回的 map 是副本，Result 与预测器共享，不应修改。
func (v *VideoPredictor) Segments() map[int]map[int]*Result {
	out := make(map[int]map[int]*Result, len(v.segments))
	for idx, objs := range v.segments {
		out[idx] = maps.Clone(objs)
	}
	return out
}

func (v *VideoPredictor) decodeFrame(idx int, prompt Prompt) (*Result, error) {
	path := filepath.Join(v.dir, v.frameNames[idx])
	img, err := annotation.LoadImage(path)
	if err != nil {
		return nil, err
	}
	points, err := prompt.toPoints()
	if err != nil {
		return nil, err
	}

	emb, err := v.model.Encode(img)
	if err != nil {
		return nil, fmt.Errorf("第 %d 帧 Encode 失败: %w", idx, err)
	}
	defer emb.Destroy()

	res, err := emb.DecodeRaw(points)
	if err != nil {
		return nil, fmt.Errorf("第 %d 帧解码失败: %w", idx, err)
	}
	return res, nil
}

func (v *VideoPredictor) store(idx int, res *Result) {
	if v.segments[idx] == nil {
		v.segments[idx] = make(map[int]*Result)
	}
	v.segments[idx][objectID] = res
}

func (v *VideoPredictor) emit(fn func(FrameResult) error, idx int, res *Result) error {
	if fn == nil {
		return nil
	}
	return fn(FrameResult{FrameIdx: idx, ObjectID: objectID, Result: res})
}
