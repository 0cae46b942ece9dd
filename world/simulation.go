package world

// Step advances every player by their held input over dt seconds.
// Replays feed the same inputs back through here and rely on the
// positions coming out bit-identical.
func Step(l *Lobby, speed, dt float64) {
	l.ForEach(func(_ PlayerID, p *Player) {
		v := p.Input.Velocity()
		p.Pos.X += v.X * speed * dt
		p.Pos.Y += v.Y * speed * dt
	})
}
