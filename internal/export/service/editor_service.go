package service

import (
	"context"
	"strings"
	"sync"

	"github.com/bitfantasy/nimo-trade/internal/export/packing"
	"github.com/bitfantasy/nimo-trade/internal/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionView 返回给编辑器的会话状态
type SessionView struct {
	ID       string                  `json:"id"`
	Invoice  packing.InvoiceSnapshot `json:"invoice"`
	Manifest packing.Manifest        `json:"manifest"`
	Report   packing.Report          `json:"reconciliation"`
	CanUndo  bool                    `json:"can_undo"`
	CanRedo  bool                    `json:"can_redo"`
	LoadedBy string                  `json:"loaded_by,omitempty"`
	Action   string                  `json:"save_action,omitempty"`
}

// EditorService 装箱单编辑会话
// 每次编辑读取会话、应用一次不可变的重建操作、写回存储。同一会话的请求在进程内串行执行。
type EditorService struct {
	packingLists *PackingListService
	store        SessionStore
	profile      packing.PackagingProfile
	tolerance    float64
	logger       *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewEditorService 创建编辑服务
func NewEditorService(pls *PackingListService, store SessionStore, profile packing.PackagingProfile, tolerance float64, logger *zap.Logger) *EditorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EditorService{
		packingLists: pls,
		store:        store,
		profile:      profile.OrDefault(),
		tolerance:    tolerance,
		logger:       logger,
		locks:        map[string]*sync.Mutex{},
	}
}

// Open 加载装箱单并开启编辑会话
func (s *EditorService) Open(ctx context.Context, key LoadKey) (*SessionView, error) {
	loaded, err := s.packingLists.LoadFor(ctx, key)
	if err != nil {
		return nil, err
	}
	sess := packing.NewSession(strings.ReplaceAll(uuid.New().String(), "-", ""), loaded.Invoice, loaded.Manifest)
	if err := s.store.Put(ctx, sess); err != nil {
		return nil, err
	}
	view := s.view(sess)
	view.LoadedBy = loaded.LoadedBy
	return view, nil
}

// Get 读取会话
func (s *EditorService) Get(ctx context.Context, sid string) (*SessionView, error) {
	sess, err := s.store.Get(ctx, sid)
	if err != nil {
		return nil, err
	}
	return s.view(sess), nil
}

// Close 结束会话，未保存的修改丢弃。等待进行中的编辑完成后再删除。
func (s *EditorService) Close(ctx context.Context, sid string) error {
	lock := s.lockFor(sid)
	lock.Lock()
	defer lock.Unlock()

	if err := s.store.Delete(ctx, sid); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.locks, sid)
	s.mu.Unlock()
	return nil
}

func (s *EditorService) UpdateHeader(ctx context.Context, sid string, p packing.HeaderPatch) (*SessionView, error) {
	return s.apply(ctx, sid, "update_header", func(m packing.Manifest) (packing.Manifest, error) {
		return m.WithHeader(p)
	})
}

func (s *EditorService) AddContainer(ctx context.Context, sid string) (*SessionView, error) {
	return s.apply(ctx, sid, "add_container", func(m packing.Manifest) (packing.Manifest, error) {
		return m.AddContainer(), nil
	})
}

func (s *EditorService) UpdateContainer(ctx context.Context, sid string, ci int, p packing.ContainerPatch) (*SessionView, error) {
	return s.apply(ctx, sid, "update_container", func(m packing.Manifest) (packing.Manifest, error) {
		return m.UpdateContainer(ci, p)
	})
}

func (s *EditorService) RemoveContainer(ctx context.Context, sid string, ci int) (*SessionView, error) {
	return s.apply(ctx, sid, "remove_container", func(m packing.Manifest) (packing.Manifest, error) {
		return m.RemoveContainer(ci)
	})
}

// AddProductLine 向集装箱添加发票上的商品
func (s *EditorService) AddProductLine(ctx context.Context, sid string, ci int, productName string) (*SessionView, error) {
	return s.withSession(ctx, sid, "add_line", func(sess *packing.Session) error {
		return sess.Apply(func(m packing.Manifest) (packing.Manifest, error) {
			return m.AddProductLine(ci, sess.Invoice, productName, s.profile)
		})
	})
}

func (s *EditorService) RemoveProductLine(ctx context.Context, sid string, ci, li int) (*SessionView, error) {
	return s.apply(ctx, sid, "remove_line", func(m packing.Manifest) (packing.Manifest, error) {
		return m.RemoveProductLine(ci, li)
	})
}

// EditProductLine 修改商品行的一个字段
func (s *EditorService) EditProductLine(ctx context.Context, sid string, ci, li int, field packing.LineField, value any) (*SessionView, error) {
	return s.apply(ctx, sid, editOp(field), func(m packing.Manifest) (packing.Manifest, error) {
		return m.EditProductLine(ci, li, field, value, s.profile)
	})
}

// Undo 撤销，没有可撤销的操作时会话不变
func (s *EditorService) Undo(ctx context.Context, sid string) (*SessionView, error) {
	return s.withSession(ctx, sid, "undo", func(sess *packing.Session) error {
		sess.Undo()
		return nil
	})
}

// Redo 重做
func (s *EditorService) Redo(ctx context.Context, sid string) (*SessionView, error) {
	return s.withSession(ctx, sid, "redo", func(sess *packing.Session) error {
		sess.Redo()
		return nil
	})
}

// Save 保存当前装箱单。失败时会话保持原样，可以重试。
func (s *EditorService) Save(ctx context.Context, sid, userID string) (*SessionView, error) {
	var action string
	view, err := s.withSession(ctx, sid, "save", func(sess *packing.Session) error {
		res, err := s.packingLists.Save(ctx, SaveRequest{
			Manifest: sess.Current,
			Baseline: sess.Baseline,
			UserID:   userID,
		})
		if err != nil {
			return err
		}
		sess.MarkSaved(res.Manifest)
		action = res.Action
		return nil
	})
	if err != nil {
		return nil, err
	}
	view.Action = action
	return view, nil
}

func (s *EditorService) apply(ctx context.Context, sid, op string, edit func(packing.Manifest) (packing.Manifest, error)) (*SessionView, error) {
	return s.withSession(ctx, sid, op, func(sess *packing.Session) error {
		return sess.Apply(edit)
	})
}

// withSession 在会话锁内读取、修改并写回会话；fn 出错时不写回
func (s *EditorService) withSession(ctx context.Context, sid, op string, fn func(*packing.Session) error) (*SessionView, error) {
	lock := s.lockFor(sid)
	lock.Lock()
	defer lock.Unlock()
	// 等锁期间会话被关闭
	if !s.holds(sid, lock) {
		return nil, ErrSessionNotFound
	}

	sess, err := s.store.Get(ctx, sid)
	if err != nil {
		return nil, err
	}
	if err := fn(sess); err != nil {
		metrics.RecordEdit(op, err)
		s.logger.Debug("packing session edit rejected", zap.String("session_id", sid), zap.String("op", op), zap.Error(err))
		return nil, err
	}
	if err := s.store.Put(ctx, sess); err != nil {
		return nil, err
	}
	metrics.RecordEdit(op, nil)
	return s.view(sess), nil
}

func (s *EditorService) lockFor(sid string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[sid]
	if !ok {
		l = &sync.Mutex{}
		s.locks[sid] = l
	}
	return l
}

// Reconcile 按配置的容差核对装箱数量
func (s *EditorService) Reconcile(m packing.Manifest, inv packing.InvoiceSnapshot) packing.Report {
	return packing.Reconcile(m, inv, s.tolerance)
}

func (s *EditorService) holds(sid string, lock *sync.Mutex) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locks[sid] == lock
}

// editOp 指标标签，未知字段统一记为 edit_unknown
func editOp(field packing.LineField) string {
	if !field.Known() {
		return "edit_unknown"
	}
	return "edit_" + string(field)
}

func (s *EditorService) view(sess *packing.Session) *SessionView {
	return &SessionView{
		ID:       sess.ID,
		Invoice:  sess.Invoice,
		Manifest: sess.Current,
		Report:   s.Reconcile(sess.Current, sess.Invoice),
		CanUndo:  len(sess.History) > 0,
		CanRedo:  len(sess.Future) > 0,
	}
}
