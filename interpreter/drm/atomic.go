package drm

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"runtime"
	"unsafe"

	"github.com/frobware/go-wbdisplay/action"
	"github.com/frobware/go-wbdisplay/interpreter"
	"github.com/frobware/go-wbdisplay/kernel"
)

type getProperty struct {
	valuesPtr      uint64
	enumBlobPtr    uint64
	propID         uint32
	flags          uint32
	name           [32]byte
	countValues    uint32
	countEnumBlobs uint32
}

type objGetProperties struct {
	propsPtr      uint64
	propValuesPtr uint64
	countProps    uint32
	objID         uint32
	objType       uint32
	pad           uint32
}

type atomicRequest struct {
	flags         uint32
	countObjs     uint32
	objsPtr       uint64
	countPropsPtr uint64
	propsPtr      uint64
	propValuesPtr uint64
	reserved      uint64
	userData      uint64
}

// AtomicCommit applies actions in one MODE_ATOMIC request. When the
// connector exposes a retire fence it is requested and returned.
func (k *kernelAdapter) AtomicCommit(ctx context.Context, actions []action.Action) (interpreter.CommitResult, error) {
	writes, err := interpreter.PropertyWrites(actions)
	if err != nil {
		return interpreter.CommitResult{}, err
	}

	fence := int64(-1)
	if conn, ok := firstConnector(writes); ok {
		if _, err := k.propertyID(conn, interpreter.ObjectConnector, interpreter.PropRetireFence); err == nil {
			writes = append(writes, interpreter.PropertyWrite{
				ObjectID:   conn,
				ObjectType: interpreter.ObjectConnector,
				Property:   interpreter.PropRetireFence,
				Value:      uint64(uintptr(unsafe.Pointer(&fence))),
			})
		}
	}

	err = k.atomic(writes, kernel.AtomicAllowModeset)
	runtime.KeepAlive(&fence)
	if err != nil {
		return interpreter.CommitResult{}, fmt.Errorf("atomic commit: %w", err)
	}

	var result interpreter.CommitResult
	if fence >= 0 {
		result.RetireFence = os.NewFile(uintptr(fence), "retire-fence")
	}
	k.logger.DebugContext(ctx, "atomic commit", "props", len(writes), "retire_fence", fence)
	return result, nil
}

// AtomicTest checks actions with a test-only MODE_ATOMIC request.
func (k *kernelAdapter) AtomicTest(ctx context.Context, actions []action.Action) error {
	writes, err := interpreter.PropertyWrites(actions)
	if err != nil {
		return err
	}
	if err := k.atomic(writes, kernel.AtomicTestOnly|kernel.AtomicAllowModeset); err != nil {
		return fmt.Errorf("atomic test: %w", err)
	}
	k.logger.DebugContext(ctx, "atomic test", "props", len(writes))
	return nil
}

// atomic groups writes by object, in order of first appearance, and
// submits them.
func (k *kernelAdapter) atomic(writes []interpreter.PropertyWrite, flags uint32) error {
	var (
		objs       []uint32
		countProps []uint32
		props      []uint32
		values     []uint64
	)

	index := make(map[uint32]int)
	grouped := make([][]interpreter.PropertyWrite, 0, len(writes))
	for _, w := range writes {
		i, ok := index[w.ObjectID]
		if !ok {
			i = len(objs)
			index[w.ObjectID] = i
			objs = append(objs, w.ObjectID)
			grouped = append(grouped, nil)
		}
		grouped[i] = append(grouped[i], w)
	}

	for _, group := range grouped {
		countProps = append(countProps, uint32(len(group)))
		for _, w := range group {
			id, err := k.propertyID(w.ObjectID, w.ObjectType, w.Property)
			if err != nil {
				return err
			}
			props = append(props, id)
			values = append(values, w.Value)
		}
	}

	req := atomicRequest{
		flags:         flags,
		countObjs:     uint32(len(objs)),
		objsPtr:       ptr(objs),
		countPropsPtr: ptr(countProps),
		propsPtr:      ptr(props),
		propValuesPtr: ptr(values),
	}
	err := k.ioctl(kernel.IOCTLModeAtomic, unsafe.Pointer(&req))
	runtime.KeepAlive(objs)
	runtime.KeepAlive(countProps)
	runtime.KeepAlive(props)
	runtime.KeepAlive(values)
	return err
}

func firstConnector(writes []interpreter.PropertyWrite) (uint32, bool) {
	for _, w := range writes {
		if w.ObjectType == interpreter.ObjectConnector {
			return w.ObjectID, true
		}
	}
	return 0, false
}

// propertyID resolves a property name on an object, loading and
// caching every property of the object on first use.
func (k *kernelAdapter) propertyID(objectID, objectType uint32, name string) (uint32, error) {
	key := propKey{objectID: objectID, name: name}
	if id, ok := k.props[key]; ok {
		return id, nil
	}

	ids, err := k.objectProperties(objectID, objectType)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		n, _, err := k.propertyName(id)
		if err != nil {
			return 0, err
		}
		k.props[propKey{objectID: objectID, name: n}] = id
	}

	if id, ok := k.props[key]; ok {
		return id, nil
	}
	return 0, fmt.Errorf("object %d has no property %q", objectID, name)
}

func (k *kernelAdapter) objectProperties(objectID, objectType uint32) ([]uint32, error) {
	probe := objGetProperties{objID: objectID, objType: objectType}
	if err := k.ioctl(kernel.IOCTLModeObjGetProperties, unsafe.Pointer(&probe)); err != nil {
		return nil, fmt.Errorf("OBJ_GETPROPERTIES %d: %w", objectID, err)
	}

	ids := make([]uint32, probe.countProps)
	values := make([]uint64, probe.countProps)
	req := objGetProperties{
		propsPtr:      ptr(ids),
		propValuesPtr: ptr(values),
		countProps:    probe.countProps,
		objID:         objectID,
		objType:       objectType,
	}
	err := k.ioctl(kernel.IOCTLModeObjGetProperties, unsafe.Pointer(&req))
	runtime.KeepAlive(ids)
	runtime.KeepAlive(values)
	if err != nil {
		return nil, fmt.Errorf("OBJ_GETPROPERTIES %d: %w", objectID, err)
	}
	return ids[:min(req.countProps, probe.countProps)], nil
}

// propertyName returns a property's name and type flags.
func (k *kernelAdapter) propertyName(id uint32) (string, uint32, error) {
	req := getProperty{propID: id}
	if err := k.ioctl(kernel.IOCTLModeGetProperty, unsafe.Pointer(&req)); err != nil {
		return "", 0, fmt.Errorf("GETPROPERTY %d: %w", id, err)
	}
	name, _, _ := bytes.Cut(req.name[:], []byte{0})
	return string(name), req.flags, nil
}
