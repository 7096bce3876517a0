package services

import (
	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/entity"
)

// InvalidatedEvent is published on the eventbus after every committed
// mutation. External cache layers subscribe and drop whatever they hold for
// the listed ids; this engine itself keeps no entity cache.
type InvalidatedEvent struct {
	Kind entity.Kind
	IDs  []int64
}
