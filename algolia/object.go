package algolia

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/letmevibethatforyou/contentx"
)

// Object is a content block as the index stores it: the block's JSON
// fields plus an objectID equal to the block key.
type Object map[string]interface{}

// ID returns the object's objectID.
func (o Object) ID() string {
	id, _ := o["objectID"].(string)
	return id
}

// ObjectFromBlock converts b into an Object keyed by the block key.
func ObjectFromBlock(b contentx.Block) (Object, error) {
	key := b.BlockKey()
	if key == "" {
		return nil, errors.Newf("%s block has no key", b.TypeName())
	}

	data, err := json.Marshal(b)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode block %s", key)
	}

	var object Object
	if err := json.Unmarshal(data, &object); err != nil {
		return nil, errors.Wrapf(err, "failed to decode block %s", key)
	}
	object["objectID"] = key
	return object, nil
}

// Block decodes the object into a typed block. The objectID stands in for
// the block key when the object carries no _metadata.
func (o Object) Block() (contentx.Block, error) {
	if _, ok := o["_metadata"]; !ok {
		if id := o.ID(); id != "" {
			o["_metadata"] = map[string]interface{}{"key": id}
		}
	}

	data, err := json.Marshal(o)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode hit")
	}
	return contentx.DecodeBlock(data)
}
