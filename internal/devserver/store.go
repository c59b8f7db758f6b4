package devserver

import (
	"encoding/json"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/jamqueueapp/jamqueue-client/internal/domain"
	"github.com/jamqueueapp/jamqueue-client/internal/errors"
	"github.com/jamqueueapp/jamqueue-client/internal/logger"
)

const (
	jamPrefix  = "jam:"
	songPrefix = "song:"
)

// Store persists jams and the song catalog as JSON values in Badger.
// It is deliberately small: the dev server only needs enough storage to
// exercise the client end to end.
type Store struct {
	db  *badger.DB
	log *logger.Logger
}

// OpenStore opens (or creates) the database at path.
func OpenStore(path string, log *logger.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Badger's own logging is too chatty for a dev tool
	opts.SyncWrites = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "open badger db")
	}
	if log != nil {
		log.Info("store opened", "path", path)
	}
	return &Store{db: db, log: log}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetJam loads one jam by id.
func (s *Store) GetJam(jamID string) (*domain.JamSession, error) {
	var jam domain.JamSession
	if err := s.get(jamPrefix+jamID, &jam); err != nil {
		return nil, err
	}
	return &jam, nil
}

// SaveJam writes the jam back.
func (s *Store) SaveJam(jam *domain.JamSession) error {
	return s.put(jamPrefix+jam.ID, jam)
}

// ListJams returns every stored jam. Edit propagation needs them all.
func (s *Store) ListJams() ([]*domain.JamSession, error) {
	var jams []*domain.JamSession
	err := s.list(jamPrefix, func(data []byte) error {
		var jam domain.JamSession
		if err := json.Unmarshal(data, &jam); err != nil {
			return err
		}
		jams = append(jams, &jam)
		return nil
	})
	return jams, err
}

// GetSong loads one catalog song.
func (s *Store) GetSong(songID string) (*domain.Song, error) {
	var song domain.Song
	if err := s.get(songPrefix+songID, &song); err != nil {
		return nil, err
	}
	return &song, nil
}

// SaveSong writes a catalog song.
func (s *Store) SaveSong(song *domain.Song) error {
	return s.put(songPrefix+song.ID, song)
}

// ListSongs returns the whole catalog.
func (s *Store) ListSongs() ([]*domain.Song, error) {
	var songs []*domain.Song
	err := s.list(songPrefix, func(data []byte) error {
		var song domain.Song
		if err := json.Unmarshal(data, &song); err != nil {
			return err
		}
		songs = append(songs, &song)
		return nil
	})
	return songs, err
}

func (s *Store) get(key string, out any) error {
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
	if err != nil {
		if err == badger.ErrKeyNotFound {
			id := strings.SplitN(key, ":", 2)[1]
			return errors.NotFoundf("%s not found", id)
		}
		return errors.Wrap(err, errors.CodeInternal, "read "+key)
	}
	return nil
}

func (s *Store) put(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "marshal "+key)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "write "+key)
	}
	return nil
}

func (s *Store) list(prefix string, visit func(data []byte) error) error {
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				return visit(val)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "scan "+prefix)
	}
	return nil
}
