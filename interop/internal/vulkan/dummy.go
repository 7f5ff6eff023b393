package vulkan

import _ "github.com/gpuinterop/glvk/interop/internal/vulkan/vk_video"
