package shader

// Program names. The GL device compiles the GLSL sources of the same name; the
// software device selects its kernels by these names.
const (
	ProgramUnlit           = "unlit"
	ProgramLitBase         = "lit_base"
	ProgramLitDir          = "lit_dir"
	ProgramLitPoint        = "lit_point"
	ProgramLitProbe        = "lit_probe"
	ProgramGBuffer         = "gbuffer"
	ProgramApplyGBuffer    = "apply_gbuffer"
	ProgramShadowDepth     = "shadow_depth"
	ProgramDeferredDir     = "deferred_dir"
	ProgramDeferredPoint   = "deferred_point"
	ProgramDeferredProbe   = "deferred_probe"
	ProgramDeferredAmbient = "deferred_ambient"
	ProgramCopy            = "copy"
	ProgramCopyGamma       = "copy_gamma"
	ProgramDebugView       = "debug_view"
	ProgramBlur            = "blur"
	ProgramFog             = "fog"
	ProgramSSAO            = "ssao"
	ProgramToneMap         = "tonemap"
)

// Camera uniforms, uploaded once per pass.
const (
	UniformViewMatrix                  = "hx_viewMatrix"
	UniformProjectionMatrix            = "hx_projectionMatrix"
	UniformViewProjectionMatrix        = "hx_viewProjectionMatrix"
	UniformInverseProjectionMatrix     = "hx_inverseProjectionMatrix"
	UniformInverseViewProjectionMatrix = "hx_inverseViewProjectionMatrix"
	UniformCameraWorldMatrix           = "hx_cameraWorldMatrix"
	UniformCameraWorldPosition         = "hx_cameraWorldPosition"
	UniformCameraNearDistance          = "hx_cameraNearPlaneDistance"
	UniformCameraFarDistance           = "hx_cameraFarPlaneDistance"
	UniformCameraFrustumRange          = "hx_cameraFrustumRange"
	UniformRenderTargetResolution      = "hx_renderTargetResolution"
	UniformRcpRenderTargetResolution   = "hx_rcpRenderTargetResolution"
)

// Instance uniforms, uploaded once per draw.
const (
	UniformWorldMatrix           = "hx_worldMatrix"
	UniformWorldViewMatrix       = "hx_worldViewMatrix"
	UniformWorldViewProjection   = "hx_wvpMatrix"
	UniformNormalWorldMatrix     = "hx_normalWorldMatrix"
	UniformNormalWorldViewMatrix = "hx_normalWorldViewMatrix"
	UniformSkinningMatrices      = "hx_skinningMatrices"
	UniformMorphWeights          = "hx_morphWeights"
)

// Material uniforms and samplers.
const (
	UniformColor                     = "hx_color"
	UniformEmissiveColor             = "hx_emissiveColor"
	UniformRoughness                 = "hx_roughness"
	UniformMetallicness              = "hx_metallicness"
	UniformNormalSpecularReflectance = "hx_normalSpecularReflectance"
	UniformAlphaThreshold            = "hx_alphaThreshold"

	SamplerColorMap    = "hx_colorMap"
	SamplerSpecularMap = "hx_specularMap"
)

// Frame textures resolved every frame.
const (
	SamplerGBufferAlbedo      = "hx_gbufferAlbedo"
	SamplerGBufferNormalDepth = "hx_gbufferNormalDepth"
	SamplerGBufferSpecular    = "hx_gbufferSpecular"
	SamplerBackbuffer         = "hx_backbuffer"
	SamplerLightAccumulation  = "hx_lightAccumulation"
	SamplerAmbientOcclusion   = "hx_ambientOcclusion"
	SamplerSource             = "hx_source"
)

// Light uniforms.
const (
	UniformAmbientColor       = "hx_ambientColor"
	UniformLightColor         = "hx_lightColor"
	UniformLightDirection     = "hx_lightDirection"
	UniformLightViewDirection = "hx_lightViewDirection"
	UniformLightPosition      = "hx_lightPosition"
	UniformLightViewPosition  = "hx_lightViewPosition"
	UniformLightRadius        = "hx_lightRadius"
	UniformProbeSkyColor      = "hx_probeSkyColor"
	UniformProbeGroundColor   = "hx_probeGroundColor"
	UniformProbeUpDirection   = "hx_probeViewUp"

	SamplerShadowMap           = "hx_shadowMap"
	UniformShadowMapMatrices   = "hx_shadowMapMatrices"
	UniformSplitDistances      = "hx_splitDistances"
	UniformDepthBias           = "hx_depthBias"
	UniformShadowMapSoftness   = "hx_shadowMapSoftness"
	UniformShadowMapPixelSize  = "hx_shadowMapPixelSize"
	UniformShadowBlurDirection = "hx_blurDirection"
)

// Effect uniforms.
const (
	UniformExposure          = "hx_exposure"
	UniformFogDensity        = "hx_fogDensity"
	UniformFogColor          = "hx_fogColor"
	UniformFogStartDistance  = "hx_fogStartDistance"
	UniformFogHeightFallOff  = "hx_fogHeightFallOff"
	UniformAOSampleRadius    = "hx_aoSampleRadius"
	UniformAOStrength        = "hx_aoStrength"
	UniformAOFallOffDistance = "hx_aoFallOffDistance"
	UniformAOSampleKernel    = "hx_aoSampleKernel"
)

// Defines understood by the program sources.
const (
	DefineLightingGGX        = "HX_LIGHTING_GGX"
	DefineLightingBlinnPhong = "HX_LIGHTING_BLINN_PHONG"
	DefineColorMap           = "HX_COLOR_MAP"
	DefineSpecularMap        = "HX_SPECULAR_MAP"
	DefineSkinning           = "HX_USE_SKINNING"
	DefineMorphing           = "HX_USE_MORPHING"
	DefineAlphaThreshold     = "HX_ALPHA_THRESHOLD"
	DefineShadow             = "HX_SHADOW"
	DefineNumCascades        = "HX_NUM_CASCADES"
	DefineShadowFilter       = "HX_SHADOW_FILTER"
	DefineGBufferMRT         = "HX_GBUFFER_MRT"
	DefineGBufferAlbedo      = "HX_GBUFFER_ALBEDO"
	DefineGBufferNormalDepth = "HX_GBUFFER_NORMAL_DEPTH"
	DefineGBufferSpecular    = "HX_GBUFFER_SPECULAR"
	DefineGammaCorrection    = "HX_GAMMA_CORRECTION"
	DefinePreciseGamma       = "HX_PRECISE_GAMMA"
	DefineDebugChannel       = "HX_DEBUG_CHANNEL"
	DefineNumAOSamples       = "HX_NUM_AO_SAMPLES"
	DefineGammaEncode        = "HX_GAMMA_ENCODE"
	DefineMaxSkinningJoints  = "HX_MAX_SKINNING_JOINTS"
)

// Shadow filter define values.
const (
	ShadowFilterHard = "0"
	ShadowFilterPCF  = "1"
	ShadowFilterVSM  = "2"
	ShadowFilterESM  = "3"
)

// Debug channel define values for ProgramDebugView.
const (
	DebugChannelAlbedo            = "0"
	DebugChannelNormals           = "1"
	DebugChannelDepth             = "2"
	DebugChannelSpecular          = "3"
	DebugChannelAmbientOcclusion  = "4"
	DebugChannelLightAccumulation = "5"
	DebugChannelShadowAtlas       = "6"
)

// MaxSkinningJoints is the size of the skinning matrix array.
const MaxSkinningJoints = 64

// MaxMorphTargets is the number of morph weights uploaded.
const MaxMorphTargets = 4

// MaxCascades is the largest supported cascade count.
const MaxCascades = 4

// ESMExponent is the exponent used by exponential shadow maps.
const ESMExponent = 80
