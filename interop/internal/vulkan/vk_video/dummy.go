package vk_video
