package api

import (
	"github.com/iudanet/boardkeeper/internal/models"
	"github.com/iudanet/boardkeeper/pkg/api"
)

// NodeToAPI конвертирует узел в wire-формат
func NodeToAPI(n *models.Node) *api.Node {
	return &api.Node{
		ID:       n.ID,
		Position: api.Point{X: n.Position.X, Y: n.Position.Y},
		Size:     api.Size{Width: n.Size.Width, Height: n.Size.Height},
		Content:  n.Content,
		Style:    n.Style,
		Metadata: api.NodeMetadata{NodeType: n.Metadata.NodeType, Locked: n.Metadata.Locked},
		ZIndex:   n.ZIndex,
	}
}

// NodeFromAPI конвертирует wire-формат в модель
func NodeFromAPI(n *api.Node) *models.Node {
	return &models.Node{
		ID:       n.ID,
		Position: models.Point{X: n.Position.X, Y: n.Position.Y},
		Size:     models.Size{Width: n.Size.Width, Height: n.Size.Height},
		Content:  n.Content,
		Style:    n.Style,
		Metadata: models.NodeMetadata{NodeType: n.Metadata.NodeType, Locked: n.Metadata.Locked},
		ZIndex:   n.ZIndex,
	}
}

// ConnectionToAPI конвертирует соединение в wire-формат
func ConnectionToAPI(c *models.Connection) *api.Connection {
	return &api.Connection{
		ID:           c.ID,
		SourceNodeID: c.SourceNodeID,
		TargetNodeID: c.TargetNodeID,
		SourceAnchor: api.Anchor{Side: c.SourceAnchor.Side, Offset: c.SourceAnchor.Offset},
		TargetAnchor: api.Anchor{Side: c.TargetAnchor.Side, Offset: c.TargetAnchor.Offset},
		Label:        c.Label,
		Style:        c.Style,
	}
}

// ConnectionFromAPI конвертирует wire-формат в модель
func ConnectionFromAPI(c *api.Connection) *models.Connection {
	return &models.Connection{
		ID:           c.ID,
		SourceNodeID: c.SourceNodeID,
		TargetNodeID: c.TargetNodeID,
		SourceAnchor: models.Anchor{Side: c.SourceAnchor.Side, Offset: c.SourceAnchor.Offset},
		TargetAnchor: models.Anchor{Side: c.TargetAnchor.Side, Offset: c.TargetAnchor.Offset},
		Label:        c.Label,
		Style:        c.Style,
	}
}
