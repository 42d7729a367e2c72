package server

// QueueDepth reports filled slots in the request ring.
func (s *Server) QueueDepth() int32 {
	return s.region.Depth()
}

// ActiveAccounts counts live accounts under the database mutex.
func (s *Server) ActiveAccounts() int {
	s.region.DBMu.Wait()
	defer s.region.DBMu.Post()
	return s.engine.Table.ActiveCount()
}
