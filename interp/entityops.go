package interp

import (
	"github.com/chazu/amalgraph/asset"
	"github.com/chazu/amalgraph/entity"
	"github.com/chazu/amalgraph/graph"
	"github.com/chazu/amalgraph/intern"
	"github.com/chazu/amalgraph/opcode"
)

func init() {
	register(opcode.CreateEntities, opCreateEntities)
	register(opcode.CloneEntities, opCloneEntities)
	register(opcode.MoveEntities, opMoveEntities)
	register(opcode.DestroyEntities, opDestroyEntities)
	register(opcode.Load, opLoad)
	register(opcode.LoadEntity, opLoadEntity)
	register(opcode.LoadPersist, opLoadPersist)
	register(opcode.Store, opStore)
	register(opcode.StoreEntity, opStoreEntity)
	register(opcode.CallEntity, opCallEntity)
	register(opcode.CallContainer, opCallContainer)
	register(opcode.RetrieveFromEntity, opRetrieveFromEntity)
	register(opcode.AssignToEntity, opAssignToEntity)
	register(opcode.AccumToEntity, opAccumToEntity)
	register(opcode.GetEntityDetails, opGetEntityDetails)
	register(opcode.SetEntityRootPermission, opSetEntityRootPermission)
	register(opcode.ContainedEntities, opContainedEntities)
	register(opcode.EntityExists, opEntityExists)
	register(opcode.MergeEntities, opMergeEntities)
}

// pathToList renders an entity path back into a list node of name
// strings, the external path format.
func (ip *Interpreter) pathToList(path []string) graph.Ref {
	out := ip.allocList()
	if out.Node == nil {
		return graph.Null
	}
	for _, name := range path {
		s := ip.allocString(name)
		if s.Node == nil {
			return graph.Null
		}
		out.Node.Ordered = append(out.Node.Ordered, s.Node)
	}
	return out
}

// entityBudgetsAllow enforces the contained-entity constraints before a
// create or clone adds a new entity at path.
func (ip *Interpreter) entityBudgetsAllow(path []string) bool {
	c := ip.Constraints
	if c == nil {
		return true
	}
	scope := ip.Entity
	if c.MaxContainedEntities > 0 && int64(scope.ContainedCount()) >= c.MaxContainedEntities {
		return false
	}
	if c.MaxContainedEntityDepth > 0 && int64(len(path)) > c.MaxContainedEntityDepth {
		return false
	}
	if c.MaxEntityIDLength > 0 {
		for _, name := range path {
			if int64(len(name)) > c.MaxEntityIDLength {
				return false
			}
		}
	}
	return true
}

// opCreateEntities creates a child entity at the evaluated path, installs
// the evaluated second argument as its root (copied into the child's own
// arena), and returns the created path.
func opCreateEntities(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	path := ip.evalEntityPath(child(n, 0))
	if len(path) == 0 {
		return graph.Null
	}
	if !ip.entityBudgetsAllow(path) {
		return graph.Null
	}

	parentPath := path[:len(path)-1]
	name := path[len(path)-1]
	guard, container, err := ip.Entity.WriteReference(parentPath)
	if err != nil {
		return graph.Null
	}
	childEnt, err := container.CreateChild(name)
	guard.Close()
	if err != nil {
		return graph.Null
	}

	if rootArg := child(n, 1); rootArg != nil {
		rootVal := ip.interpretNode(rootArg, false)
		if rootVal.Node != nil {
			copied := childEnt.Manager.CopyTree(rootVal.Node)
			childEnt.SetRoot(graph.Ref{Node: copied, Unique: true})
		}
		ip.Manager.FreeNodeTreeIfPossible(rootVal)
	}
	return ip.pathToList(path)
}

// cloneInto recursively copies src's root and children into a fresh
// entity sharing src's pool.
func cloneInto(src *entity.Entity, name string) *entity.Entity {
	dup := entity.New(name, src.Pool, src.Random.Seed())
	if src.Root.Node != nil {
		dup.SetRoot(graph.Ref{Node: dup.Manager.CopyTree(src.Root.Node), Unique: true})
	}
	for _, childName := range src.ChildNames() {
		c, ok := src.Child(childName)
		if !ok {
			continue
		}
		dup.AttachChild(childName, cloneInto(c, childName))
	}
	return dup
}

func opCloneEntities(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	srcPath := ip.evalEntityPath(child(n, 0))
	destPath := ip.evalEntityPath(child(n, 1))
	if len(destPath) == 0 {
		return graph.Null
	}
	if !ip.entityBudgetsAllow(destPath) {
		return graph.Null
	}
	srcGuard, src, err := ip.Entity.ReadReference(srcPath)
	if err != nil {
		return graph.Null
	}
	dup := cloneInto(src, destPath[len(destPath)-1])
	srcGuard.Close()

	destGuard, container, err := ip.Entity.WriteReference(destPath[:len(destPath)-1])
	if err != nil {
		return graph.Null
	}
	container.AttachChild(destPath[len(destPath)-1], dup)
	destGuard.Close()
	return ip.pathToList(destPath)
}

func opMoveEntities(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	srcPath := ip.evalEntityPath(child(n, 0))
	destPath := ip.evalEntityPath(child(n, 1))
	if len(srcPath) == 0 || len(destPath) == 0 {
		return graph.Null
	}
	srcGuard, srcParent, err := ip.Entity.WriteReference(srcPath[:len(srcPath)-1])
	if err != nil {
		return graph.Null
	}
	moved, ok := srcParent.DetachChild(srcPath[len(srcPath)-1])
	srcGuard.Close()
	if !ok {
		return graph.Null
	}
	destGuard, destParent, err := ip.Entity.WriteReference(destPath[:len(destPath)-1])
	if err != nil {
		return graph.Null
	}
	destParent.AttachChild(destPath[len(destPath)-1], moved)
	destGuard.Close()
	return ip.pathToList(destPath)
}

func opDestroyEntities(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	destroyed := 0
	for _, c := range n.Ordered {
		path := ip.evalEntityPath(c)
		if len(path) == 0 {
			continue
		}
		guard, parent, err := ip.Entity.WriteReference(path[:len(path)-1])
		if err != nil {
			continue
		}
		if parent.DestroyChild(path[len(path)-1]) == nil {
			destroyed++
		}
		guard.Close()
	}
	return ip.allocBool(destroyed > 0)
}

func opLoad(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	if !ip.Entity.RootPermission {
		return graph.Null
	}
	ok, path := ip.InterpretIntoString(child(n, 0))
	if !ok {
		return graph.Null
	}
	root, status := asset.LoadRoot(path, ip.Manager, ip.Pool)
	if !status.Loaded {
		return graph.Null
	}
	return root
}

func (ip *Interpreter) loadEntityAt(n *graph.Node, persist bool) graph.Ref {
	if !ip.Entity.RootPermission {
		return graph.Null
	}
	ok, file := ip.InterpretIntoString(child(n, 0))
	if !ok {
		return graph.Null
	}
	path := ip.evalEntityPath(child(n, 1))
	if len(path) == 0 {
		return graph.Null
	}
	loaded, status := asset.LoadEntity(file, path[len(path)-1], ip.Pool)
	if !status.Loaded {
		return graph.Null
	}
	if persist {
		loaded.PersistPath = file
	}
	guard, container, err := ip.Entity.WriteReference(path[:len(path)-1])
	if err != nil {
		return graph.Null
	}
	container.AttachChild(path[len(path)-1], loaded)
	guard.Close()
	return ip.pathToList(path)
}

func opLoadEntity(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	return ip.loadEntityAt(n, false)
}

func opLoadPersist(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	return ip.loadEntityAt(n, true)
}

func opStore(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	if !ip.Entity.RootPermission {
		return ip.allocBool(false)
	}
	ok, path := ip.InterpretIntoString(child(n, 0))
	if !ok {
		return ip.allocBool(false)
	}
	value := ip.interpretNode(child(n, 1), false)
	err := asset.StoreRoot(path, value.Node, ip.Pool)
	ip.Manager.FreeNodeTreeIfPossible(value)
	return ip.allocBool(err == nil)
}

func opStoreEntity(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	if !ip.Entity.RootPermission {
		return ip.allocBool(false)
	}
	ok, file := ip.InterpretIntoString(child(n, 0))
	if !ok {
		return ip.allocBool(false)
	}
	path := ip.evalEntityPath(child(n, 1))
	guard, target, err := ip.Entity.ReadReference(path)
	if err != nil {
		return ip.allocBool(false)
	}
	storeErr := asset.StoreEntity(file, target)
	guard.Close()
	return ip.allocBool(storeErr == nil)
}

// callInEntity evaluates code in target's own context: a fresh
// interpreter over target's arena, a new call stack bound from args, and
// budgets derived from the caller's. The result is copied back into the
// caller's arena before the target is unlocked.
func (ip *Interpreter) callInEntity(target *entity.Entity, code *graph.Node, argsNode *graph.Node) graph.Ref {
	callee := New(target, ip.Threads)
	callee.Constraints = ip.PopulatePerformanceCounters(nil)
	target.Manager.SetConstraints(callee.Constraints)

	if argsNode != nil {
		args := ip.interpretNode(argsNode, false)
		if args.Node != nil && args.Node.Mapped != nil {
			frame := callee.Call.Frames[0]
			for k, v := range args.Node.Mapped {
				frame.Mapped[k] = target.Manager.CopyTree(v)
			}
		}
		ip.Manager.FreeNodeTreeIfPossible(args)
	}

	result := callee.Execute(graph.Ref{Node: code})
	target.Manager.SetConstraints(nil)
	if ip.Constraints != nil && callee.Constraints != nil {
		ip.Constraints.CurExecutionStep += callee.Constraints.CurExecutionStep
	}
	if result.Node == nil {
		return graph.Null
	}
	return graph.Ref{Node: ip.Manager.CopyTree(result.Node), Unique: true}
}

// entityCallTarget resolves the node a cross-entity call addresses: a
// label name, skipping private labels, falling back to the entity root
// when no name is given.
func (ip *Interpreter) entityCallTarget(target *entity.Entity, nameArg *graph.Node) *graph.Node {
	if nameArg == nil {
		return target.Root.Node
	}
	ok, name := ip.InterpretIntoString(nameArg)
	if !ok || PrivateLabel(name) {
		return nil
	}
	id, exists := ip.Pool.Lookup(name)
	if !exists {
		return nil
	}
	node, found := target.NodeByLabel(id)
	if !found {
		return nil
	}
	return node
}

func opCallEntity(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	path := ip.evalEntityPath(child(n, 0))
	guard, target, err := ip.Entity.WriteReference(path)
	if err != nil {
		return graph.Null
	}
	defer guard.Close()
	code := ip.entityCallTarget(target, child(n, 1))
	if code == nil {
		return graph.Null
	}
	return ip.callInEntity(target, code, child(n, 2))
}

func opCallContainer(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	container := ip.Entity.Container
	if container == nil {
		return graph.Null
	}
	code := ip.entityCallTarget(container, child(n, 0))
	if code == nil {
		return graph.Null
	}
	return ip.callInEntity(container, code, child(n, 1))
}

// entityValue resolves name inside target: first the label index, then a
// key of an associative root.
func entityValue(target *entity.Entity, pool *intern.Pool, name string) *graph.Node {
	if id, exists := pool.Lookup(name); exists {
		if node, found := target.NodeByLabel(id); found {
			return node
		}
		if target.Root.Node != nil && target.Root.Node.Mapped != nil {
			if v, found := target.Root.Node.Mapped[id]; found {
				return v
			}
		}
	}
	return nil
}

func opRetrieveFromEntity(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	path := ip.evalEntityPath(child(n, 0))
	guard, target, err := ip.Entity.ReadReference(path)
	if err != nil {
		return graph.Null
	}
	defer guard.Close()
	ok, name := ip.InterpretIntoString(child(n, 1))
	if !ok || PrivateLabel(name) {
		return graph.Null
	}
	v := entityValue(target, ip.Pool, name)
	if v == nil {
		return graph.Null
	}
	return graph.Ref{Node: ip.Manager.CopyTree(v), Unique: true}
}

func opAssignToEntity(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	path := ip.evalEntityPath(child(n, 0))
	guard, target, err := ip.Entity.WriteReference(path)
	if err != nil {
		return ip.allocBool(false)
	}
	defer guard.Close()
	ok, name := ip.InterpretIntoString(child(n, 1))
	if !ok || PrivateLabel(name) {
		return ip.allocBool(false)
	}
	value := ip.interpretNode(child(n, 2), false)
	copied := target.Manager.CopyTree(value.Node)
	ip.Manager.FreeNodeTreeIfPossible(value)

	id := ip.Pool.Intern(name)
	if node, found := target.NodeByLabel(id); found && node != nil {
		replaceInPlace(node, copied)
		ip.Pool.Release(id)
		return ip.allocBool(true)
	}
	if target.Root.Node == nil {
		target.SetRoot(graph.Ref{Node: copied, Unique: true})
		ip.Pool.Release(id)
		return ip.allocBool(true)
	}
	if target.Root.Node.Mapped == nil {
		target.Root.Node.Mapped = make(map[uint32]*graph.Node)
		target.Root.Node.Kind = opcode.Associative
	}
	target.Root.Node.Mapped[id] = copied
	return ip.allocBool(true)
}

// replaceInPlace overwrites a labeled node's payload with src's so the
// label keeps addressing the same slot in the tree.
func replaceInPlace(dst, src *graph.Node) {
	if src == nil {
		dst.Kind = opcode.Null
		dst.Num = 0
		dst.Ordered = nil
		dst.Mapped = nil
		return
	}
	dst.Kind = src.Kind
	dst.Num = src.Num
	dst.Str = src.Str
	dst.Sym = src.Sym
	dst.Ordered = src.Ordered
	dst.Mapped = src.Mapped
	dst.NeedCycleCheck = src.NeedCycleCheck
}

func opAccumToEntity(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	path := ip.evalEntityPath(child(n, 0))
	guard, target, err := ip.Entity.WriteReference(path)
	if err != nil {
		return ip.allocBool(false)
	}
	defer guard.Close()
	ok, name := ip.InterpretIntoString(child(n, 1))
	if !ok || PrivateLabel(name) {
		return ip.allocBool(false)
	}
	addition := ip.interpretNode(child(n, 2), false)
	existing := entityValue(target, ip.Pool, name)

	calleeIP := New(target, ip.Threads)
	merged := calleeIP.accumulate(existing, graph.Ref{Node: target.Manager.CopyTree(addition.Node)})
	ip.Manager.FreeNodeTreeIfPossible(addition)

	if existing != nil {
		replaceInPlace(existing, merged.Node)
		return ip.allocBool(true)
	}
	id := ip.Pool.Intern(name)
	if target.Root.Node != nil && target.Root.Node.Mapped != nil {
		target.Root.Node.Mapped[id] = merged.Node
		return ip.allocBool(true)
	}
	ip.Pool.Release(id)
	return ip.allocBool(false)
}

func opGetEntityDetails(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	path := ip.evalEntityPath(child(n, 0))
	guard, target, err := ip.Entity.ReadReference(path)
	if err != nil {
		return graph.Null
	}
	defer guard.Close()

	out := ip.allocAssoc()
	if out.Node == nil {
		return graph.Null
	}
	put := func(key string, v graph.Ref) {
		if v.Node != nil {
			out.Node.Mapped[ip.Pool.Intern(key)] = v.Node
		}
	}
	put("name", ip.allocString(target.Name))
	put("contained_entities", ip.allocNumber(float64(len(target.ChildNames()))))
	put("rand_seed", ip.allocString(target.Random.Seed()))
	put("root_permission", ip.allocBool(target.RootPermission))
	return out
}

func opSetEntityRootPermission(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	if !ip.Entity.RootPermission {
		return ip.allocBool(false)
	}
	path := ip.evalEntityPath(child(n, 0))
	guard, target, err := ip.Entity.WriteReference(path)
	if err != nil {
		return ip.allocBool(false)
	}
	target.RootPermission = ip.InterpretIntoBool(child(n, 1), false)
	guard.Close()
	return ip.allocBool(true)
}

func opContainedEntities(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	path := ip.evalEntityPath(child(n, 0))
	guard, target, err := ip.Entity.ReadReference(path)
	if err != nil {
		return graph.Null
	}
	names := target.ChildNames()
	guard.Close()
	return ip.pathToList(names)
}

func opEntityExists(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	path := ip.evalEntityPath(child(n, 0))
	guard, _, err := ip.Entity.ReadReference(path)
	if err == nil {
		guard.Close()
	}
	return ip.allocBool(err == nil)
}

// opMergeEntities merges the source entity's root and children into the
// destination: roots merge tree-wise, children present only in the
// source are cloned over.
func opMergeEntities(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	srcPath := ip.evalEntityPath(child(n, 0))
	destPath := ip.evalEntityPath(child(n, 1))
	srcGuard, src, err := ip.Entity.ReadReference(srcPath)
	if err != nil {
		return ip.allocBool(false)
	}
	defer srcGuard.Close()
	destGuard, dest, err := ip.Entity.WriteReference(destPath)
	if err != nil {
		return ip.allocBool(false)
	}
	defer destGuard.Close()

	destIP := New(dest, ip.Threads)
	srcCopy := dest.Manager.CopyTree(src.Root.Node)
	dest.SetRoot(graph.Ref{Node: destIP.mergeNodes(dest.Root.Node, srcCopy), Unique: false})

	for _, name := range src.ChildNames() {
		if _, exists := dest.Child(name); exists {
			continue
		}
		if c, ok := src.Child(name); ok {
			dest.AttachChild(name, cloneInto(c, name))
		}
	}
	return ip.allocBool(true)
}
