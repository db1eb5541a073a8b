package core

// Close closes the database connection and releases resources.
// An in-memory store loses its data here. Closing twice is a no-op.
func (s *SQLiteStore) Close() error {
	if s.closed {
		return nil
	}

	s.closed = true

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return err
		}
	}

	s.logger.Info("database connection closed")

	return nil
}
