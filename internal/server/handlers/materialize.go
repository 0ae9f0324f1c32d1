package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iudanet/boardkeeper/internal/crdt"
	"github.com/iudanet/boardkeeper/internal/models"
	"github.com/iudanet/boardkeeper/internal/server/storage"
)

// materializeDelta применяет операции дельты к durable-состоянию
// workspace. Дельты применяются в порядке журналирования; это не полный
// LWW-merge, но debounce-flush клиентов периодически переписывает полное
// состояние сущностей через REST и выравнивает любые расхождения.
// Ошибки по отдельным операциям собираются, остальные применяются.
func materializeDelta(ctx context.Context, st storage.WorkspaceStorage, workspaceID string, d *crdt.Delta) error {
	var errs []error

	for _, op := range d.Ops {
		var err error
		switch op.Entity {
		case crdt.EntityNode:
			err = materializeNodeOp(ctx, st, workspaceID, op)
		case crdt.EntityConnection:
			err = materializeConnectionOp(ctx, st, workspaceID, op)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s %s/%s: %w", op.Entity, op.ID, op.Field, err))
		}
	}

	return errors.Join(errs...)
}

func materializeNodeOp(ctx context.Context, st storage.WorkspaceStorage, workspaceID string, op crdt.Op) error {
	switch op.Field {
	case crdt.FieldCreate:
		// Существующий узел не затирается: create приходит повторно
		// в составе полного состояния после реконнекта, когда поля
		// уже могли быть обновлены позже
		if _, err := st.GetNode(ctx, workspaceID, op.ID); err == nil {
			return nil
		} else if !errors.Is(err, storage.ErrNodeNotFound) {
			return err
		}
		var n models.Node
		if err := json.Unmarshal(op.Value, &n); err != nil {
			return err
		}
		n.ID = op.ID
		return st.UpsertNode(ctx, workspaceID, &n)

	case crdt.FieldDelete:
		if err := st.DeleteNode(ctx, workspaceID, op.ID); err != nil && !errors.Is(err, storage.ErrNodeNotFound) {
			return err
		}
		_, err := st.DeleteNodeConnections(ctx, workspaceID, op.ID)
		return err

	default:
		n, err := st.GetNode(ctx, workspaceID, op.ID)
		if errors.Is(err, storage.ErrNodeNotFound) {
			// Узел удален или его create еще не доехал: поле пропускаем,
			// полное состояние допишет flush участника-источника
			return nil
		}
		if err != nil {
			return err
		}
		if err := applyNodeField(n, op); err != nil {
			return err
		}
		return st.UpsertNode(ctx, workspaceID, n)
	}
}

func applyNodeField(n *models.Node, op crdt.Op) error {
	switch op.Field {
	case crdt.FieldPosition:
		return json.Unmarshal(op.Value, &n.Position)
	case crdt.FieldSize:
		return json.Unmarshal(op.Value, &n.Size)
	case crdt.FieldContent:
		n.Content = append(json.RawMessage(nil), op.Value...)
		return nil
	case crdt.FieldStyle:
		return json.Unmarshal(op.Value, &n.Style)
	case crdt.FieldMetadata:
		return json.Unmarshal(op.Value, &n.Metadata)
	case crdt.FieldZIndex:
		return json.Unmarshal(op.Value, &n.ZIndex)
	default:
		return fmt.Errorf("unknown node field %q", op.Field)
	}
}

func materializeConnectionOp(ctx context.Context, st storage.WorkspaceStorage, workspaceID string, op crdt.Op) error {
	switch op.Field {
	case crdt.FieldCreate:
		if _, err := st.GetConnection(ctx, workspaceID, op.ID); err == nil {
			return nil
		} else if !errors.Is(err, storage.ErrConnectionNotFound) {
			return err
		}
		var c models.Connection
		if err := json.Unmarshal(op.Value, &c); err != nil {
			return err
		}
		c.ID = op.ID
		return st.UpsertConnection(ctx, workspaceID, &c)

	case crdt.FieldDelete:
		if err := st.DeleteConnection(ctx, workspaceID, op.ID); err != nil && !errors.Is(err, storage.ErrConnectionNotFound) {
			return err
		}
		return nil

	default:
		c, err := st.GetConnection(ctx, workspaceID, op.ID)
		if errors.Is(err, storage.ErrConnectionNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := applyConnectionField(c, op); err != nil {
			return err
		}
		return st.UpsertConnection(ctx, workspaceID, c)
	}
}

func applyConnectionField(c *models.Connection, op crdt.Op) error {
	switch op.Field {
	case crdt.FieldAnchors:
		var a crdt.AnchorsValue
		if err := json.Unmarshal(op.Value, &a); err != nil {
			return err
		}
		c.SourceAnchor = a.Source
		c.TargetAnchor = a.Target
		return nil
	case crdt.FieldLabel:
		return json.Unmarshal(op.Value, &c.Label)
	case crdt.FieldStyle:
		return json.Unmarshal(op.Value, &c.Style)
	default:
		return fmt.Errorf("unknown connection field %q", op.Field)
	}
}
