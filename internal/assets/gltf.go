package assets

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"go.uber.org/zap"

	"github.com/Faultbox/helix/internal/engine/gpu"
	"github.com/Faultbox/helix/internal/engine/material"
	"github.com/Faultbox/helix/internal/engine/mesh"
	"github.com/Faultbox/helix/internal/engine/scene"
	hmath "github.com/Faultbox/helix/pkg/math"
)

// maxNodeDepth bounds the node hierarchy of imported documents.
const maxNodeDepth = 64

// GLTFOptions controls model import.
type GLTFOptions struct {
	// LightingModel is given to every imported material.
	LightingModel material.LightingModel
	// CastShadows is copied to every model instance.
	CastShadows bool
}

// DefaultGLTFOptions imports GGX materials that cast shadows.
func DefaultGLTFOptions() GLTFOptions {
	return GLTFOptions{LightingModel: material.GGX, CastShadows: true}
}

// Model is an imported glTF scene.
type Model struct {
	Name      string
	Root      *scene.Node
	Meshes    []*mesh.Mesh
	Materials []*material.Material
}

// Bounds returns the bounds of the model in its root's parent space.
func (m *Model) Bounds() hmath.AABB { return m.Root.WorldBounds() }

// Release frees the GPU buffers of the meshes. Textures stay with the manager.
func (m *Model) Release() {
	for _, me := range m.Meshes {
		me.Release()
	}
}

type gltfImporter struct {
	m    *Manager
	doc  *gltf.Document
	path string
	opts GLTFOptions
	log  *zap.Logger

	model     *Model
	meshes    map[int][]*scene.MeshInstance
	materials map[int]*material.Material
	fallback  *material.Material
}

// LoadGLTF imports the default scene of a .gltf or .glb file. Each glTF node becomes
// a group node; meshes hang below it as model nodes, one mesh per triangle primitive.
func (m *Manager) LoadGLTF(path string, opts GLTFOptions) (*Model, error) {
	full, err := m.Resolve(path)
	if err != nil {
		return nil, err
	}
	doc, err := gltf.Open(full)
	if err != nil {
		return nil, fmt.Errorf("open gltf %s: %w", full, err)
	}

	imp := &gltfImporter{
		m:         m,
		doc:       doc,
		path:      full,
		opts:      opts,
		log:       m.log.With(zap.String("model", full)),
		model:     &Model{Name: filepath.Base(full), Root: scene.NewGroup(filepath.Base(full))},
		meshes:    make(map[int][]*scene.MeshInstance),
		materials: make(map[int]*material.Material),
	}
	for _, n := range imp.rootNodes() {
		child, err := imp.node(n, 0)
		if err != nil {
			imp.model.Release()
			return nil, err
		}
		imp.model.Root.AddChild(child)
	}

	imp.log.Info("model loaded",
		zap.Int("meshes", len(imp.model.Meshes)),
		zap.Int("materials", len(imp.model.Materials)))
	return imp.model, nil
}

func (imp *gltfImporter) rootNodes() []int {
	doc := imp.doc
	switch {
	case doc.Scene != nil && *doc.Scene < len(doc.Scenes):
		return doc.Scenes[*doc.Scene].Nodes
	case len(doc.Scenes) > 0:
		return doc.Scenes[0].Nodes
	}
	isChild := make([]bool, len(doc.Nodes))
	for _, n := range doc.Nodes {
		for _, c := range n.Children {
			if c < len(isChild) {
				isChild[c] = true
			}
		}
	}
	var roots []int
	for i, child := range isChild {
		if !child {
			roots = append(roots, i)
		}
	}
	return roots
}

func (imp *gltfImporter) node(idx, depth int) (*scene.Node, error) {
	if idx < 0 || idx >= len(imp.doc.Nodes) {
		return nil, fmt.Errorf("gltf node %d out of range", idx)
	}
	if depth > maxNodeDepth {
		return nil, fmt.Errorf("gltf node hierarchy deeper than %d", maxNodeDepth)
	}
	src := imp.doc.Nodes[idx]
	name := src.Name
	if name == "" {
		name = "node" + strconv.Itoa(idx)
	}

	n := scene.NewGroup(name)
	n.SetTransform(nodeTransform(src))

	if src.Mesh != nil {
		instances, err := imp.mesh(*src.Mesh)
		if err != nil {
			return nil, err
		}
		if len(instances) > 0 {
			model := scene.NewModelInstance(instances...)
			model.CastShadows = imp.opts.CastShadows
			n.AddChild(scene.NewModelNode(name+"/mesh", model))
		}
	}
	for _, c := range src.Children {
		child, err := imp.node(c, depth+1)
		if err != nil {
			return nil, err
		}
		n.AddChild(child)
	}
	return n, nil
}

// nodeTransform returns the local matrix of a node, from its matrix or its TRS.
func nodeTransform(n *gltf.Node) mgl32.Mat4 {
	if m := n.MatrixOrDefault(); m != gltf.DefaultMatrix {
		var out mgl32.Mat4
		for i, v := range m {
			out[i] = float32(v)
		}
		return out
	}
	t := n.Translation
	r := n.RotationOrDefault()
	s := n.ScaleOrDefault()
	rot := mgl32.Quat{W: float32(r[3]), V: mgl32.Vec3{float32(r[0]), float32(r[1]), float32(r[2])}}.Normalize()
	return mgl32.Translate3D(float32(t[0]), float32(t[1]), float32(t[2])).
		Mul4(rot.Mat4()).
		Mul4(mgl32.Scale3D(float32(s[0]), float32(s[1]), float32(s[2])))
}

// mesh builds the instances of a glTF mesh. Meshes referenced by several nodes share
// their vertex data.
func (imp *gltfImporter) mesh(idx int) ([]*scene.MeshInstance, error) {
	if idx < 0 || idx >= len(imp.doc.Meshes) {
		return nil, fmt.Errorf("gltf mesh %d out of range", idx)
	}
	if cached, ok := imp.meshes[idx]; ok {
		// instances carry visibility; share the mesh, not the instance
		out := make([]*scene.MeshInstance, len(cached))
		for i, mi := range cached {
			out[i] = scene.NewMeshInstance(mi.Mesh, mi.Material)
		}
		return out, nil
	}

	src := imp.doc.Meshes[idx]
	var out []*scene.MeshInstance
	for p, prim := range src.Primitives {
		if prim.Mode != gltf.PrimitiveTriangles {
			imp.log.Debug("skipping non-triangle primitive", zap.String("mesh", src.Name), zap.Int("primitive", p))
			continue
		}
		data, err := imp.primitive(prim)
		if err != nil {
			return nil, fmt.Errorf("gltf mesh %q primitive %d: %w", src.Name, p, err)
		}
		me, err := mesh.New(fmt.Sprintf("%s/%d", src.Name, p), data)
		if err != nil {
			return nil, err
		}
		imp.model.Meshes = append(imp.model.Meshes, me)

		mat, err := imp.material(prim.Material)
		if err != nil {
			return nil, err
		}
		out = append(out, scene.NewMeshInstance(me, mat))
	}
	imp.meshes[idx] = out
	return out, nil
}

// primitive reads positions, normals and texture coordinates into interleaved data.
// Missing normals are computed; texture coordinates are flipped to a bottom-left
// origin.
func (imp *gltfImporter) primitive(prim *gltf.Primitive) (*gpu.MeshData, error) {
	doc := imp.doc
	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return nil, mesh.ErrNoPositions
	}
	positions, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
	if err != nil {
		return nil, fmt.Errorf("read positions: %w", err)
	}

	var indices []uint32
	if prim.Indices != nil {
		indices, err = modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil)
		if err != nil {
			return nil, fmt.Errorf("read indices: %w", err)
		}
	} else {
		indices = make([]uint32, len(positions)-len(positions)%3)
		for i := range indices {
			indices[i] = uint32(i)
		}
	}
	for _, i := range indices {
		if int(i) >= len(positions) {
			return nil, fmt.Errorf("index %d out of range of %d vertices", i, len(positions))
		}
	}

	var normals [][3]float32
	if idx, ok := prim.Attributes[gltf.NORMAL]; ok {
		if normals, err = modeler.ReadNormal(doc, doc.Accessors[idx], nil); err != nil {
			return nil, fmt.Errorf("read normals: %w", err)
		}
	}
	if len(normals) != len(positions) {
		normals = smoothNormals(positions, indices)
	}

	var uvs [][2]float32
	if idx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
		if uvs, err = modeler.ReadTextureCoord(doc, doc.Accessors[idx], nil); err != nil {
			return nil, fmt.Errorf("read texture coordinates: %w", err)
		}
	}

	data := &gpu.MeshData{
		Attributes: []gpu.VertexAttribute{
			{Name: gpu.AttrPosition, Size: 3},
			{Name: gpu.AttrNormal, Size: 3},
			{Name: gpu.AttrTexCoord, Size: 2},
		},
		Vertices: make([]float32, 0, len(positions)*8),
		Indices:  indices,
	}
	for i, p := range positions {
		n := normals[i]
		var uv [2]float32
		if i < len(uvs) {
			uv = [2]float32{uvs[i][0], 1 - uvs[i][1]}
		}
		data.Vertices = append(data.Vertices, p[0], p[1], p[2], n[0], n[1], n[2], uv[0], uv[1])
	}
	return data, nil
}

// smoothNormals averages the area-weighted face normals around each vertex.
func smoothNormals(positions [][3]float32, indices []uint32) [][3]float32 {
	acc := make([]mgl32.Vec3, len(positions))
	for t := 0; t+2 < len(indices); t += 3 {
		a := mgl32.Vec3(positions[indices[t]])
		b := mgl32.Vec3(positions[indices[t+1]])
		c := mgl32.Vec3(positions[indices[t+2]])
		n := b.Sub(a).Cross(c.Sub(a))
		for _, i := range indices[t : t+3] {
			acc[i] = acc[i].Add(n)
		}
	}
	out := make([][3]float32, len(positions))
	for i, n := range acc {
		if l := n.Len(); l > 1e-12 {
			n = n.Mul(1 / l)
		} else {
			n = mgl32.Vec3{0, 1, 0}
		}
		out[i] = [3]float32(n)
	}
	return out
}

// material converts a glTF material; primitives without one share a white default.
func (imp *gltfImporter) material(idx *int) (*material.Material, error) {
	if idx == nil {
		if imp.fallback == nil {
			imp.fallback = material.New("default", imp.opts.LightingModel)
			imp.model.Materials = append(imp.model.Materials, imp.fallback)
		}
		return imp.fallback, nil
	}
	if mat, ok := imp.materials[*idx]; ok {
		return mat, nil
	}
	if *idx < 0 || *idx >= len(imp.doc.Materials) {
		return nil, fmt.Errorf("gltf material %d out of range", *idx)
	}

	src := imp.doc.Materials[*idx]
	name := src.Name
	if name == "" {
		name = "material" + strconv.Itoa(*idx)
	}
	mat := material.New(name, imp.opts.LightingModel)

	if pbr := src.PBRMetallicRoughness; pbr != nil {
		if c := pbr.BaseColorFactor; c != nil {
			mat.SetColor(mgl32.Vec4{float32(c[0]), float32(c[1]), float32(c[2]), float32(c[3])})
		}
		if pbr.MetallicFactor != nil {
			mat.SetMetallicness(float32(*pbr.MetallicFactor))
		}
		if pbr.RoughnessFactor != nil {
			mat.SetRoughness(float32(*pbr.RoughnessFactor))
		}
		if pbr.BaseColorTexture != nil {
			tex, err := imp.texture(pbr.BaseColorTexture.Index)
			if err != nil {
				imp.log.Warn("base color texture unavailable", zap.String("material", name), zap.Error(err))
			} else {
				mat.SetColorMap(tex)
			}
		}
	}
	e := src.EmissiveFactor
	mat.SetEmissive(mgl32.Vec3{float32(e[0]), float32(e[1]), float32(e[2])})

	switch src.AlphaMode {
	case gltf.AlphaBlend:
		mat.SetBlendState(&gpu.BlendAlpha)
		mat.SetWriteDepth(false)
	case gltf.AlphaMask:
		cutoff := 0.5
		if src.AlphaCutoff != nil {
			cutoff = *src.AlphaCutoff
		}
		mat.SetAlphaThreshold(float32(cutoff))
	}
	if src.DoubleSided {
		mat.SetCullMode(gpu.CullNone)
	}

	imp.materials[*idx] = mat
	imp.model.Materials = append(imp.model.Materials, mat)
	return mat, nil
}

// texture uploads the image behind a glTF texture through the manager's cache.
func (imp *gltfImporter) texture(idx int) (gpu.Texture, error) {
	doc := imp.doc
	if idx < 0 || idx >= len(doc.Textures) || doc.Textures[idx].Source == nil {
		return nil, fmt.Errorf("gltf texture %d has no image", idx)
	}
	imgIdx := *doc.Textures[idx].Source
	if imgIdx < 0 || imgIdx >= len(doc.Images) {
		return nil, fmt.Errorf("gltf image %d out of range", imgIdx)
	}
	img := doc.Images[imgIdx]

	switch {
	case img.BufferView != nil:
		key := fmt.Sprintf("%s#image%d%s", imp.path, imgIdx, mimeExt(img.MimeType))
		if tex, ok := imp.m.texture(key); ok {
			return tex, nil
		}
		data, err := modeler.ReadBufferView(doc, doc.BufferViews[*img.BufferView])
		if err != nil {
			return nil, fmt.Errorf("read image %d: %w", imgIdx, err)
		}
		return imp.m.uploadTexture(key, data)

	case img.IsEmbeddedResource():
		key := fmt.Sprintf("%s#image%d%s", imp.path, imgIdx, mimeExt(img.MimeType))
		if tex, ok := imp.m.texture(key); ok {
			return tex, nil
		}
		data, err := img.MarshalData()
		if err != nil {
			return nil, fmt.Errorf("decode image %d: %w", imgIdx, err)
		}
		return imp.m.uploadTexture(key, data)
	}
	return imp.m.Texture(filepath.Join(filepath.Dir(imp.path), filepath.FromSlash(img.URI)))
}

func mimeExt(mime string) string {
	switch mime {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	}
	return ""
}
