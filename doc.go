// Package drm provides a library to interact with DRM
// (Direct Rendering Manager) and KMS (Kernel Mode Setting) interfaces.
// DRM is a low level interface for the graphics card (gpu) and this package
// enables the creation of graphics library on top of the kernel drm/kms
// subsystem.
//
// The mode subpackage exposes the mode-setting objects and the atomic API,
// the kms subpackage builds buffers, framebuffers and outputs on top of it
// and presents per-frame compositions through hardware planes.
package drm
