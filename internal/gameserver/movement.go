package gameserver

// handlePositionUpdate stores the sender's reported position verbatim and
// tells every other player. An absent coordinate keeps its current value.
// Updates from an unjoined connection are ignored.
//
// Precondition: e.mu is held.
func (e *Engine) handlePositionUpdate(c *Client, x, y *float64) error {
	if c.playerID == "" {
		return nil
	}
	p, ok := e.players.Get(c.playerID)
	if !ok {
		return nil
	}

	nx, ny := p.X, p.Y
	if x != nil {
		nx = *x
	}
	if y != nil {
		ny = *y
	}
	e.players.Move(p.ID, nx, ny)

	e.bcast.BroadcastExcept(e.players.Snapshot(), p.ID, PlayerPosition{
		Type:     TypePlayerPosition,
		PlayerID: p.ID,
		X:        nx,
		Y:        ny,
	})
	return nil
}
